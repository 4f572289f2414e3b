// textnorm.go - Accent-insensitive matching for food names
//
// Portuguese food names are searched without accents ("acucar" finds
// "Açúcar"), so every comparison goes through Normalize.

package textnorm

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips diacritics, turns punctuation into spaces
// and collapses whitespace.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded := fold(s)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// fold lowercases s and strips diacritics, leaving everything else.
func fold(s string) string {
	return ASCIIFold(strings.ToLower(s))
}

// Searchable reports whether term keeps any letter or digit once normalized.
func Searchable(term string) bool {
	return Normalize(term) != ""
}

// Contains reports whether text contains term, ignoring case and accents.
// A term without letters or digits matches nothing.
func Contains(text, term string) bool {
	nt := Normalize(term)
	if text == "" || nt == "" {
		return false
	}
	return strings.Contains(Normalize(text), nt)
}

// Highlight wraps every occurrence of term in text with pre and post,
// ignoring case and accents. The original spelling of text is kept.
func Highlight(text, term, pre, post string) string {
	needle := []rune(fold(strings.TrimSpace(term)))
	if len(needle) == 0 {
		return text
	}
	src := []rune(text)
	var hay []rune
	var at []int // index in src of each folded rune
	for i, r := range src {
		for _, f := range fold(string(r)) {
			hay = append(hay, f)
			at = append(at, i)
		}
	}

	var b strings.Builder
	next := 0
	for i := 0; i+len(needle) <= len(hay); {
		if string(hay[i:i+len(needle)]) != string(needle) || at[i] < next {
			i++
			continue
		}
		start, end := at[i], at[i+len(needle)-1]+1
		b.WriteString(string(src[next:start]))
		b.WriteString(pre)
		b.WriteString(string(src[start:end]))
		b.WriteString(post)
		next = end
		i += len(needle)
	}
	b.WriteString(string(src[next:]))
	return b.String()
}

// HasPrefix reports whether text starts with term, ignoring case and accents.
func HasPrefix(text, term string) bool {
	if text == "" || term == "" {
		return false
	}
	return strings.HasPrefix(Normalize(text), Normalize(term))
}

// Similarity scores two strings between 0 and 1. Equal normalized strings
// score 1; when one contains the other the score is the length ratio;
// otherwise it is the share of words that overlap.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		shorter, longer := na, nb
		if len(shorter) > len(longer) {
			shorter, longer = longer, shorter
		}
		return float64(len([]rune(shorter))) / float64(len([]rune(longer)))
	}

	wa, wb := strings.Fields(na), strings.Fields(nb)
	common := 0
	for _, w1 := range wa {
		for _, w2 := range wb {
			if strings.Contains(w2, w1) || strings.Contains(w1, w2) {
				common++
				break
			}
		}
	}
	total := len(wa)
	if len(wb) > total {
		total = len(wb)
	}
	if total == 0 {
		return 0
	}
	return float64(common) / float64(total)
}

// SortByRelevance orders items by how well key(item) matches term: prefix
// matches first, then higher similarity, then plain containment. Ties keep
// their input order. An empty term returns items unchanged.
func SortByRelevance[T any](items []T, term string, key func(T) string) []T {
	if term == "" {
		return items
	}
	type scored struct {
		item     T
		prefix   bool
		sim      float64
		contains bool
	}
	ranked := make([]scored, len(items))
	for i, it := range items {
		k := key(it)
		ranked[i] = scored{it, HasPrefix(k, term), Similarity(k, term), Contains(k, term)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.prefix != b.prefix {
			return a.prefix
		}
		if a.sim != b.sim {
			return a.sim > b.sim
		}
		if a.contains != b.contains {
			return a.contains
		}
		return false
	})

	out := make([]T, len(ranked))
	for i, r := range ranked {
		out[i] = r.item
	}
	return out
}

// ASCIIFold strips diacritics but keeps case and punctuation.
func ASCIIFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
