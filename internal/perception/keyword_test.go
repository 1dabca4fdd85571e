package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alexeyavdey/gptbot/internal/types"
)

func TestClassifyKeyword(t *testing.T) {
	cases := []struct {
		text string
		want types.IntentAction
	}{
		{"add a task to call the dentist", types.ActionCreate},
		{"remind me to water the plants", types.ActionCreate},
		{"delete the milk task", types.ActionDelete},
		{"please remove that one", types.ActionDelete},
		{"mark the report as done", types.ActionUpdate},
		{"I finished the presentation", types.ActionUpdate},
		{"show my tasks", types.ActionView},
		{"what do I have today", types.ActionView},
		{"how was your day", types.ActionUnknown},
		{"", types.ActionUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyKeyword(tc.text), "text: %s", tc.text)
	}
}

func TestClassifyKeywordDeleteBeatsStatusVerbs(t *testing.T) {
	assert.Equal(t, types.ActionDelete, ClassifyKeyword("delete the finished task"))
}

func TestIsAffirmative(t *testing.T) {
	for _, text := range []string{"yes", "Yes", "  yep ", "confirm", "go ahead", "delete it", "Yes!"} {
		assert.True(t, IsAffirmative(text), "text: %s", text)
	}
	for _, text := range []string{"yes, but rename it first", "no", "delete the other one", "maybe"} {
		assert.False(t, IsAffirmative(text), "text: %s", text)
	}
}
