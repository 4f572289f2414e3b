package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "acucar cristal", Normalize("  Açúcar,   CRISTAL! "))
	assert.Equal(t, "pao de queijo", Normalize("Pão-de-queijo"))
	assert.Equal(t, "", Normalize(""))
}

func TestContainsAndPrefix(t *testing.T) {
	assert.True(t, Contains("Feijão, carioca, cozido", "feijao carioca"))
	assert.True(t, HasPrefix("Maçã, Fuji, com casca", "maca"))
	assert.False(t, HasPrefix("Suco de maçã", "maca"))
	assert.False(t, Contains("", "x"))
	assert.False(t, Contains("x", ""))

	// Punctuation alone is not a search term
	assert.False(t, Contains("Feijão, carioca", "..."))
	assert.False(t, Searchable(" -!? "))
	assert.True(t, Searchable("pão"))
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, "Comi <b>Pão</b> e mais <b>pao</b>", Highlight("Comi Pão e mais pao", "pão", "<b>", "</b>"))
	assert.Equal(t, "<b>AÇÚCAR</b> mascavo", Highlight("AÇÚCAR mascavo", "acucar", "<b>", "</b>"))
	assert.Equal(t, "sem nada", Highlight("sem nada", "arroz", "<b>", "</b>"))
	assert.Equal(t, "texto", Highlight("texto", "  ", "<b>", "</b>"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Arroz", "ARROZ"))
	assert.InDelta(t, 5.0/14.0, Similarity("Arroz integral", "arroz"), 1e-9)
	assert.InDelta(t, 0.5, Similarity("banana prata", "prata crua"), 1e-9)
	assert.Equal(t, 0.0, Similarity("", "x"))
}

func TestSortByRelevance(t *testing.T) {
	names := []string{"Suco de maçã", "Maçã, Fuji", "Torta de maçã com canela", "Banana"}
	got := SortByRelevance(names, "maçã", func(s string) string { return s })
	assert.Equal(t, "Maçã, Fuji", got[0])
	assert.Equal(t, "Banana", got[len(got)-1])

	assert.Equal(t, names, SortByRelevance(names, "", func(s string) string { return s }))
}

func TestASCIIFold(t *testing.T) {
	assert.Equal(t, "Feijao, Pao", ASCIIFold("Feijão, Pão"))
}
