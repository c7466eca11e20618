package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/artisan/internal/hasher"
)

func openTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), maxBytes)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "fp1", []byte("hello world"), 0))

	data, _, err := s.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestGetReturnsStoredOutputHash(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "fp1", []byte("hello world"), 0))

	_, outputHash, err := s.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, hasher.HashBytes([]byte("hello world")), outputHash)
	assert.NotEqual(t, "fp1", outputHash, "output hash must not be the fingerprint")
}

func TestGetMissingIsMissError(t *testing.T) {
	s := openTestStore(t, 0)
	_, _, err := s.Get(context.Background(), "nope")
	var miss *MissError
	require.ErrorAs(t, err, &miss)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "fp1", []byte("x"), time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, _, err := s.Get(ctx, "fp1")
	var miss *MissError
	require.ErrorAs(t, err, &miss)
}

func TestCorruptedBlobDetected(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "fp1", []byte("original"), 0))

	require.NoError(t, os.WriteFile(s.blobPath("fp1"), []byte("tampered"), 0644))

	_, _, err := s.Get(ctx, "fp1")
	var corrupt *CorruptionError
	require.ErrorAs(t, err, &corrupt)

	// entry removed: subsequent Get is a clean miss, not another corruption.
	_, _, err = s.Get(ctx, "fp1")
	var miss *MissError
	require.ErrorAs(t, err, &miss)
}

func TestInvalidateRemovesEntry(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "fp1", []byte("hello"), 0))

	require.NoError(t, s.Invalidate(ctx, "fp1"))

	_, _, err := s.Get(ctx, "fp1")
	var miss *MissError
	require.ErrorAs(t, err, &miss)
}

func TestInvalidateMissingIsNoop(t *testing.T) {
	s := openTestStore(t, 0)
	require.NoError(t, s.Invalidate(context.Background(), "nope"))
}

func TestStatsReflectsOccupancy(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a", []byte("12345"), 0))
	require.NoError(t, s.Put(ctx, "b", []byte("123"), 0))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Entries)
	assert.EqualValues(t, 8, st.TotalBytes)
}

func TestByteBudgetEvictsLeastRecentlyAccessed(t *testing.T) {
	s := openTestStore(t, 10)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []byte("0123456789"), 0)) // 10 bytes, at budget
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Put(ctx, "b", []byte("0123456789"), 0)) // forces eviction of "a"

	_, _, err := s.Get(ctx, "a")
	var miss *MissError
	require.ErrorAs(t, err, &miss)

	_, _, err = s.Get(ctx, "b")
	require.NoError(t, err)
}

func TestEvictReappliesByteBudgetWithoutWriting(t *testing.T) {
	s := openTestStore(t, 10)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", []byte("0123456789"), 0))
	// lower the effective budget after the fact, as "gc" is meant to handle
	// when max_bytes shrinks in config between runs.
	s.maxBytes = 5

	require.NoError(t, s.Evict(ctx))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Entries)
}

func TestEvictIsNoopWithoutByteBudget(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a", []byte("x"), 0))

	require.NoError(t, s.Evict(ctx))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Entries)
}

func TestClearRemovesEverything(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a", []byte("x"), 0))
	require.NoError(t, s.Clear(ctx))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Entries)
}
