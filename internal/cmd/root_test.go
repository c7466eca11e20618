package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandListsAllSubcommands(t *testing.T) {
	root := NewRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "plan")
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "resume")
	assert.Contains(t, names, "cache")
}

func TestPlanRequiresGoalText(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"plan"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestPlanFailsWithoutAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ARTISAN_HOME", t.TempDir())

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"plan", "build", "a", "thing"})
	var errOut bytes.Buffer
	cmd.SetErr(&errOut)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestRunFailsWithoutAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ARTISAN_HOME", t.TempDir())

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"run", "build", "a", "thing"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestPlanListRecentOnEmptyStore(t *testing.T) {
	t.Setenv("ARTISAN_HOME", t.TempDir())
	t.Setenv("ARTISAN_PLAN_DIR", t.TempDir())

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"plan", "list-recent"})

	require.NoError(t, cmd.Execute())
	assert.Empty(t, out.String())
}
