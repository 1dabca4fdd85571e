package perception

import (
	"strings"

	"github.com/alexeyavdey/gptbot/internal/types"
)

// MaxDisambiguation caps how many candidates a disambiguation reply lists.
const MaxDisambiguation = 10

// MatchTasks resolves a free-text phrase against the user's task list.
// Matching is tiered: exact substring over title+description first, then
// all-words-present for multi-token phrases, then a suffix-folded pass
// that tolerates common inflected forms. The first tier that produces
// any match wins.
func MatchTasks(tasks []*types.Task, phrase string) []*types.Task {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return nil
	}

	// Tier 1: substring match.
	var matches []*types.Task
	for _, t := range tasks {
		if strings.Contains(taskText(t), phrase) {
			matches = append(matches, t)
		}
	}
	if len(matches) > 0 {
		return matches
	}

	// Tier 2: every word of the phrase present somewhere in the task text.
	words := strings.Fields(phrase)
	if len(words) > 1 {
		for _, t := range tasks {
			if containsAllWords(taskText(t), words) {
				matches = append(matches, t)
			}
		}
		if len(matches) > 0 {
			return matches
		}
	}

	// Tier 3: suffix-folded comparison on both sides.
	folded := make([]string, len(words))
	for i, w := range words {
		folded[i] = foldSuffix(w)
	}
	for _, t := range tasks {
		if containsAllFolded(taskText(t), folded) {
			matches = append(matches, t)
		}
	}
	return matches
}

func taskText(t *types.Task) string {
	return strings.ToLower(t.Title + " " + t.Description)
}

func containsAllWords(text string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

func containsAllFolded(text string, folded []string) bool {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	foldedTokens := make([]string, len(tokens))
	for i, tok := range tokens {
		foldedTokens[i] = foldSuffix(tok)
	}
	for _, want := range folded {
		found := false
		for _, have := range foldedTokens {
			if strings.HasPrefix(have, want) || strings.HasPrefix(want, have) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '-' || r == '\'' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r > 127
}

// wordSuffixes lists inflection endings stripped during folding, longest
// first so "presentations" folds the same as "presentation".
var wordSuffixes = []string{"ations", "ation", "ings", "ing", "ies", "ied", "es", "ed", "s"}

// foldSuffix strips a common inflection ending from a token. Short tokens
// are left alone so "is" and "as" do not collapse.
func foldSuffix(token string) string {
	for _, suf := range wordSuffixes {
		if strings.HasSuffix(token, suf) && len(token)-len(suf) >= 3 {
			return token[:len(token)-len(suf)]
		}
	}
	return token
}
