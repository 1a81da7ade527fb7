package entries

import (
	"context"
	"fmt"
	"sort"
	"strings"

	pkgerrors "github.com/introspect-labs/introspect-backend/pkg/errors"
)

// Analyzer produces a lightweight reflection summary for a journal entry.
// It runs locally; swapping in a model-backed implementation only means
// replacing this type behind the same method.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

var moodLexicon = map[string]string{
	"happy":     "positive",
	"grateful":  "positive",
	"excited":   "positive",
	"calm":      "positive",
	"proud":     "positive",
	"sad":       "negative",
	"anxious":   "negative",
	"angry":     "negative",
	"tired":     "negative",
	"stressed":  "negative",
	"worried":   "negative",
	"lonely":    "negative",
	"hopeful":   "positive",
	"frustrate": "negative",
}

// Analyze summarizes the entry's length and the mood signals it contains.
func (a *Analyzer) Analyze(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "analysis cancelled")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "entry text is required")
	}

	words := strings.Fields(trimmed)
	counts := map[string]int{}
	for _, word := range words {
		normalized := strings.ToLower(strings.Trim(word, ".,!?;:\"'()"))
		for stem, mood := range moodLexicon {
			if strings.HasPrefix(normalized, stem) {
				counts[mood]++
			}
		}
	}

	if len(counts) == 0 {
		return fmt.Sprintf("Entry of %d words with a neutral tone.", len(words)), nil
	}

	moods := make([]string, 0, len(counts))
	for mood := range counts {
		moods = append(moods, mood)
	}
	sort.Slice(moods, func(i, j int) bool {
		if counts[moods[i]] != counts[moods[j]] {
			return counts[moods[i]] > counts[moods[j]]
		}
		return moods[i] < moods[j]
	})

	return fmt.Sprintf("Entry of %d words with a predominantly %s tone.", len(words), moods[0]), nil
}
