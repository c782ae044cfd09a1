package expander

import (
	"fmt"
	"strings"
)

// VariantType is the boolean operator joining base and expansion keyword.
type VariantType string

const (
	TypeAND VariantType = "AND"
	TypeOR  VariantType = "OR"
	TypeNOT VariantType = "NOT"
)

// Variant is a boolean query built from a base and an expansion keyword.
// Accepted variants carry their search evidence.
type Variant struct {
	Query           string      `json:"query"`
	Type            VariantType `json:"type"`
	Description     string      `json:"description"`
	ArticleCount    int         `json:"article_count"`
	Depth           int         `json:"depth"`
	ReferenceTitles []string    `json:"reference_titles"`
	Score           float64     `json:"score"`
}

// Variants returns the AND and OR variants of base and cand, plus NOT when
// neither contains the other ignoring case.
func Variants(base, cand string) []Variant {
	out := []Variant{
		{
			Query:       fmt.Sprintf("%s %s", base, cand),
			Type:        TypeAND,
			Description: fmt.Sprintf("%s and %s", base, cand),
		},
		{
			Query:       fmt.Sprintf("%s OR %s", base, cand),
			Type:        TypeOR,
			Description: fmt.Sprintf("%s or %s", base, cand),
		},
	}
	if !mutualSubstring(base, cand) {
		out = append(out, Variant{
			Query:       fmt.Sprintf("%s NOT %s", base, cand),
			Type:        TypeNOT,
			Description: fmt.Sprintf("%s excluding %s", base, cand),
		})
	}
	return out
}

func mutualSubstring(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
