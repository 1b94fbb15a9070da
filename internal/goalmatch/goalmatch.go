// Package goalmatch scores how well a task title relates to a goal.
//
// The score mixes three signals, each in [0,1]:
//
//	0.4 × token overlap      share of goal tokens present in the task
//	0.3 × keyword substring  share of goal keywords found inside the task text
//	0.3 × category           1 when both texts hit the same keyword category
//
// Tokens are lower-cased alphanumeric runs with stop words removed.
package goalmatch

import (
	"strings"
	"unicode"
)

const (
	overlapWeight   = 0.4
	substringWeight = 0.3
	categoryWeight  = 0.3

	// DescriptionDiscount scales scores computed from a goal's description.
	DescriptionDiscount = 0.7
	// Threshold is the minimum score for a goal to match a task.
	Threshold = 0.25

	minKeywordLen = 3
)

// Goal is anything with a title and an optional description.
type Goal struct {
	ID          string
	Title       string
	Description string
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "do": {}, "for": {}, "from": {}, "get": {}, "go": {}, "has": {}, "have": {},
	"i": {}, "in": {}, "into": {}, "is": {}, "it": {}, "my": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "so": {}, "some": {}, "than": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "up": {}, "was": {}, "we": {}, "with": {}, "more": {}, "less": {}, "every": {},
	"each": {}, "day": {}, "daily": {}, "week": {}, "weekly": {}, "month": {}, "will": {},
	"want": {}, "try": {}, "about": {}, "your": {}, "me": {}, "also": {},
}

// categories maps a category name to keywords. A token hits a category when it
// equals a keyword or, for keywords of four letters or more, starts with it.
var categories = map[string][]string{
	"reading":     {"read", "book", "books", "chapter", "novel", "library", "kindle", "article"},
	"fitness":     {"workout", "exercise", "gym", "run", "running", "jog", "walk", "yoga", "lift", "train", "swim", "cycle", "steps", "stretch"},
	"mindfulness": {"meditate", "meditation", "mindful", "breathe", "breathing", "gratitude", "calm"},
	"learning":    {"study", "learn", "course", "class", "lesson", "practice", "homework", "lecture", "exam"},
	"health":      {"sleep", "water", "diet", "healthy", "vegetables", "doctor", "dentist", "vitamin", "meal"},
	"finance":     {"budget", "save", "savings", "money", "invest", "expense", "expenses", "bills", "debt"},
	"social":      {"call", "friend", "friends", "family", "mom", "dad", "visit", "date", "dinner"},
	"creative":    {"write", "writing", "draw", "drawing", "paint", "music", "guitar", "piano", "sing", "photo"},
	"home":        {"clean", "laundry", "cook", "cooking", "grocery", "groceries", "tidy", "dishes", "garden"},
	"career":      {"resume", "interview", "network", "portfolio", "promotion", "job", "apply"},
}

// Tokenize lower-cases text, splits it on anything that is not a letter or
// digit, and drops stop words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Similarity scores a goal text against a task text. The result is in [0,1].
func Similarity(goalText, taskText string) float64 {
	goalTokens := unique(Tokenize(goalText))
	taskTokens := unique(Tokenize(taskText))
	if len(goalTokens) == 0 || len(taskTokens) == 0 {
		return 0
	}

	score := overlapWeight*tokenOverlap(goalTokens, taskTokens) +
		substringWeight*substringBonus(goalTokens, strings.ToLower(taskText)) +
		categoryWeight*categoryBonus(goalTokens, taskTokens)
	return clamp(score)
}

// Score returns the best of the title score and the discounted description score.
func Score(g Goal, taskTitle string) float64 {
	best := Similarity(g.Title, taskTitle)
	if strings.TrimSpace(g.Description) != "" {
		if d := DescriptionDiscount * Similarity(g.Description, taskTitle); d > best {
			best = d
		}
	}
	return best
}

// FindMatchingGoal returns the highest-scoring goal whose score exceeds
// Threshold. The earliest goal wins ties. ok is false when nothing matches.
func FindMatchingGoal(taskTitle string, goals []Goal) (match Goal, score float64, ok bool) {
	for _, g := range goals {
		s := Score(g, taskTitle)
		if s <= Threshold {
			continue
		}
		if !ok || s > score {
			match, score, ok = g, s, true
		}
	}
	return match, score, ok
}

func tokenOverlap(goal, task []string) float64 {
	set := make(map[string]struct{}, len(task))
	for _, t := range task {
		set[t] = struct{}{}
	}
	common := 0
	for _, g := range goal {
		if _, ok := set[g]; ok {
			common++
		}
	}
	return float64(common) / float64(len(goal))
}

func substringBonus(goal []string, taskText string) float64 {
	considered, hits := 0, 0
	for _, g := range goal {
		if len(g) < minKeywordLen {
			continue
		}
		considered++
		if strings.Contains(taskText, g) {
			hits++
		}
	}
	if considered == 0 {
		return 0
	}
	return float64(hits) / float64(considered)
}

func categoryBonus(goal, task []string) float64 {
	goalCats := categoriesOf(goal)
	if len(goalCats) == 0 {
		return 0
	}
	for c := range categoriesOf(task) {
		if _, ok := goalCats[c]; ok {
			return 1
		}
	}
	return 0
}

func categoriesOf(tokens []string) map[string]struct{} {
	out := make(map[string]struct{})
	for name, keywords := range categories {
		for _, t := range tokens {
			if hitsKeyword(t, keywords) {
				out[name] = struct{}{}
				break
			}
		}
	}
	return out
}

func hitsKeyword(token string, keywords []string) bool {
	for _, k := range keywords {
		if token == k || (len(k) >= 4 && strings.HasPrefix(token, k)) {
			return true
		}
	}
	return false
}

func unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
