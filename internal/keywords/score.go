package keywords

import (
	"sort"
	"strings"
	"unicode"
)

// Source identifies where a candidate keyword came from.
type Source string

const (
	SourceRelated Source = "related"
	SourceTopN    Source = "topn"
	SourcePopular Source = "popular"
)

// Weight is the base contribution of a source's first-ranked keyword.
func (s Source) Weight() float64 {
	switch s {
	case SourceRelated:
		return 1.5
	case SourceTopN:
		return 1.2
	case SourcePopular:
		return 1.0
	default:
		return 0
	}
}

const (
	// SeedBonus multiplies the contribution of keywords containing the seed.
	SeedBonus = 1.3
	// MaxScored bounds the keyword set handed to clustering.
	MaxScored = 50
)

// Candidate is one keyword from one source, with its 1-based rank.
type Candidate struct {
	Text         string
	Source       Source
	Rank         int
	Weight       float64
	ContainsSeed bool
}

// Scored is a keyword with its aggregated score.
type Scored struct {
	Text  string  `json:"keyword"`
	Score float64 `json:"score"`
}

// Annotate turns the three source lists into candidates, in the order
// related, top-N, popular. Weight decays as 1/rank within each source.
func Annotate(seed string, related, topn, popular []string) []Candidate {
	lowerSeed := strings.ToLower(seed)
	out := make([]Candidate, 0, len(related)+len(topn)+len(popular))
	add := func(src Source, words []string) {
		for i, w := range words {
			rank := i + 1
			out = append(out, Candidate{
				Text:         w,
				Source:       src,
				Rank:         rank,
				Weight:       src.Weight() / float64(rank),
				ContainsSeed: strings.Contains(strings.ToLower(w), lowerSeed),
			})
		}
	}
	add(SourceRelated, related)
	add(SourceTopN, topn)
	add(SourcePopular, popular)
	return out
}

// Filter drops keywords that are shorter than two characters, digits only,
// symbols only, or equal to the seed ignoring case, and removes later
// case-insensitive duplicates. Filter(Filter(x)) == Filter(x).
func Filter(seed string, candidates []Candidate) []Candidate {
	lowerSeed := strings.ToLower(seed)
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		lower := strings.ToLower(c.Text)
		if _, dup := seen[lower]; dup {
			continue
		}
		if !acceptable(c.Text) || lower == lowerSeed {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, c)
	}
	return out
}

func acceptable(text string) bool {
	if len([]rune(text)) < 2 {
		return false
	}
	return !digitsOnly(text) && !symbolsOnly(text)
}

func digitsOnly(text string) bool {
	for _, r := range text {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// symbolsOnly reports whether no rune is a word character, whitespace, or a
// Hangul syllable.
func symbolsOnly(text string) bool {
	for _, r := range text {
		if isWordRune(r) || unicode.IsSpace(r) || isHangulSyllable(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func isHangulSyllable(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}

// Score sums candidate contributions by exact text and sorts the result by
// score, highest first. Ties keep first-seen order.
func Score(candidates []Candidate) []Scored {
	index := make(map[string]int, len(candidates))
	out := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		contribution := c.Weight
		if c.ContainsSeed {
			contribution *= SeedBonus
		}
		if i, ok := index[c.Text]; ok {
			out[i].Score += contribution
			continue
		}
		index[c.Text] = len(out)
		out = append(out, Scored{Text: c.Text, Score: contribution})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Top returns at most n leading entries.
func Top(scored []Scored, n int) []Scored {
	if n < 0 || len(scored) <= n {
		return scored
	}
	return scored[:n]
}

// Texts extracts keyword strings in order.
func Texts(scored []Scored) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Text
	}
	return out
}

// Rank runs the full filter-and-score stage over a collection and returns
// the top MaxScored keywords.
func Rank(seed string, col *Collection) []Scored {
	return Top(Score(Filter(seed, col.Candidates(seed))), MaxScored)
}
