package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// DefaultGeoTerms are locale words that bank exports append to merchant names.
var DefaultGeoTerms = []string{
	"australia", "aus", "au",
	"new south wales", "nsw", "victoria", "vic", "queensland", "qld",
	"western australia", "wa", "south australia", "sa", "tasmania", "tas",
	"northern territory", "nt", "australian capital territory",
	"sydney", "melbourne", "brisbane", "perth", "adelaide", "hobart",
	"canberra", "darwin", "gold coast", "sunshine coast", "newcastle",
	"wollongong", "geelong", "parramatta", "north sydney", "chatswood",
}

// Normalizer turns a raw bank description into the text both stages compare against.
type Normalizer struct {
	geo *regexp.Regexp
}

// NewNormalizer builds a normalizer that strips the given geo terms as whole
// words. Multi-word terms match across any run of whitespace.
func NewNormalizer(geoTerms []string) (*Normalizer, error) {
	terms := make([]string, 0, len(geoTerms))
	for _, term := range geoTerms {
		words := strings.Fields(strings.ToLower(term))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		terms = append(terms, strings.Join(words, `\s+`))
	}

	n := &Normalizer{}
	if len(terms) == 0 {
		return n, nil
	}

	// Longest first so "north sydney" wins over "sydney".
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })

	re, err := regexp.Compile(`\b(?:` + strings.Join(terms, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile geo terms: %w", err)
	}
	n.geo = re
	return n, nil
}

// DefaultNormalizer returns a normalizer over DefaultGeoTerms.
func DefaultNormalizer() *Normalizer {
	n, err := NewNormalizer(DefaultGeoTerms)
	if err != nil {
		panic(err)
	}
	return n
}

// Normalize lowercases text, strips geo terms, replaces everything that is
// neither a letter nor whitespace with a space and collapses whitespace.
func (n *Normalizer) Normalize(text string) string {
	text = strings.ToLower(text)
	if n.geo != nil {
		text = n.geo.ReplaceAllString(text, " ")
	}
	return squash(text)
}

// NormalizeKeyword prepares a rule keyword. Geo terms are stripped too so a
// keyword is compared in the same space as the descriptions it targets.
func (n *Normalizer) NormalizeKeyword(keyword string) string {
	return n.Normalize(keyword)
}

// GeoTermsIn returns the geo terms Normalize would strip from text, in order.
func (n *Normalizer) GeoTermsIn(text string) []string {
	if n.geo == nil {
		return nil
	}
	matches := n.geo.FindAllString(strings.ToLower(text), -1)
	for i, m := range matches {
		matches[i] = strings.Join(strings.Fields(m), " ")
	}
	return matches
}

func squash(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
