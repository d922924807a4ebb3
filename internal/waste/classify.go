package waste

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// KeywordRule maps a normalized substring to a canonical type.
type KeywordRule struct {
	Keyword string
	Type    Type
}

// DefaultKeywordRules returns the built-in keyword table.
//
// Order matters: rules are tested top to bottom and the first match wins,
// so more specific keywords come before more general ones ("hausmull"
// before "rest").
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{Keyword: "hausmull", Type: TypeGeneral},
		{Keyword: "rest", Type: TypeGeneral},
		{Keyword: "bio", Type: TypeOrganic},
		{Keyword: "papier", Type: TypePaper},
		{Keyword: "paper", Type: TypePaper},
		{Keyword: "gelb", Type: TypeRecyclableBag},
		{Keyword: "plast", Type: TypePlastic},
		{Keyword: "glas", Type: TypeGlass},
	}
}

// Classifier maps free-text source labels ("Restmüll-Abfuhr") to canonical
// types by normalized substring match against an ordered keyword table.
type Classifier struct {
	rules []KeywordRule
}

// NewClassifier builds a classifier. Extra rules are tried before the
// built-in table so operator-supplied keywords can override it.
func NewClassifier(extra ...KeywordRule) *Classifier {
	rules := make([]KeywordRule, 0, len(extra)+8)
	for _, r := range extra {
		if strings.TrimSpace(r.Keyword) == "" || r.Type == "" {
			continue
		}
		rules = append(rules, KeywordRule{Keyword: normalizeLabel(r.Keyword), Type: r.Type})
	}
	rules = append(rules, DefaultKeywordRules()...)
	return &Classifier{rules: rules}
}

// Classify returns the canonical type for label. An unrecognized label is
// returned unchanged as a pseudo-type so the source entry stays visible.
func (c *Classifier) Classify(label string) Type {
	s := normalizeLabel(label)
	for _, r := range c.rules {
		if strings.Contains(s, r.Keyword) {
			return r.Type
		}
	}
	return Type(strings.TrimSpace(label))
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeLabel lowercases and folds diacritics so "Hausmüll" matches the
// keyword "hausmull". ß is expanded to "ss" before decomposition.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "ß", "ss")
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return folded
}
