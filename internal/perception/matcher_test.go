package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexeyavdey/gptbot/internal/types"
)

func sampleTasks() []*types.Task {
	return []*types.Task{
		{ID: "t1", Title: "Bank site strategy presentation", Description: "Prepare slides for the client"},
		{ID: "t2", Title: "Q2 marketing strategy", Description: "Draft the marketing plan"},
		{ID: "t3", Title: "Buy milk", Description: "Grocery run"},
		{ID: "t4", Title: "Client meeting", Description: "Discuss the project"},
	}
}

func TestMatchTasksSubstring(t *testing.T) {
	matches := MatchTasks(sampleTasks(), "strategy")
	require.Len(t, matches, 2)
	assert.Equal(t, "t1", matches[0].ID)
	assert.Equal(t, "t2", matches[1].ID)
}

func TestMatchTasksCaseInsensitive(t *testing.T) {
	matches := MatchTasks(sampleTasks(), "BUY MILK")
	require.Len(t, matches, 1)
	assert.Equal(t, "t3", matches[0].ID)
}

func TestMatchTasksSearchesDescription(t *testing.T) {
	matches := MatchTasks(sampleTasks(), "grocery")
	require.Len(t, matches, 1)
	assert.Equal(t, "t3", matches[0].ID)
}

func TestMatchTasksAllWords(t *testing.T) {
	// "presentation strategy" is not a substring of any title, but both
	// words occur in the first task's text.
	matches := MatchTasks(sampleTasks(), "presentation strategy")
	require.Len(t, matches, 1)
	assert.Equal(t, "t1", matches[0].ID)
}

func TestMatchTasksSuffixFolding(t *testing.T) {
	// Inflected query still finds the singular title.
	matches := MatchTasks(sampleTasks(), "presentations")
	require.Len(t, matches, 1)
	assert.Equal(t, "t1", matches[0].ID)

	matches = MatchTasks(sampleTasks(), "meetings")
	require.Len(t, matches, 1)
	assert.Equal(t, "t4", matches[0].ID)
}

func TestMatchTasksNoMatch(t *testing.T) {
	assert.Empty(t, MatchTasks(sampleTasks(), "vacation"))
	assert.Empty(t, MatchTasks(sampleTasks(), "   "))
	assert.Empty(t, MatchTasks(nil, "anything"))
}

func TestMatchTasksSubstringBeatsLaterTiers(t *testing.T) {
	// A direct substring hit must not be diluted with fuzzy extras.
	tasks := []*types.Task{
		{ID: "a", Title: "write report"},
		{ID: "b", Title: "writing reports weekly"},
	}
	matches := MatchTasks(tasks, "writing reports")
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
}

func TestFoldSuffix(t *testing.T) {
	assert.Equal(t, "present", foldSuffix("presentation"))
	assert.Equal(t, "present", foldSuffix("presentations"))
	assert.Equal(t, "meet", foldSuffix("meeting"))
	assert.Equal(t, "report", foldSuffix("reports"))
	// Short tokens are untouched.
	assert.Equal(t, "is", foldSuffix("is"))
	assert.Equal(t, "yes", foldSuffix("yes"))
}
