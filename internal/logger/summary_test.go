package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/artisan/internal/artifact"
	"github.com/harrison/artisan/internal/planstore"
)

func TestLogRunSummaryRendersBoxedTallies(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")

	record := planstore.NewRecord("fp1", "build a thing", []artifact.Spec{
		{ID: "A"}, {ID: "B"}, {ID: "C"},
	}, [][]string{{"A"}, {"B", "C"}}, 0.9)
	record.Results["A"] = artifact.Result{ArtifactID: "A", Status: artifact.StatusCompleted}
	record.Results["B"] = artifact.Result{ArtifactID: "B", Status: artifact.StatusFailed}
	record.ModelDistribution = map[string]int{"standard": 3, "background": 1}

	l.LogRunSummary(record)

	out := buf.String()
	assert.Contains(t, out, "fp1")
	assert.Contains(t, out, "build a thing")
	assert.Contains(t, out, "waves: 2")
	assert.Contains(t, out, "completed=1 failed=1 blocked=0 remaining=1")
	assert.Contains(t, out, "model calls: background=1 standard=3")
}

func TestLogRunSummaryTruncatesLongGoalText(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")

	longGoal := ""
	for i := 0; i < 40; i++ {
		longGoal += "ship the feature end to end "
	}
	record := planstore.NewRecord("fp2", longGoal, nil, nil, 0)

	l.LogRunSummary(record)

	out := buf.String()
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, longGoal)
}

func TestLogRunSummaryNilRecordIsNoop(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")

	l.LogRunSummary(nil)

	assert.Empty(t, buf.String())
}
