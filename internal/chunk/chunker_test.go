package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/plantcare/internal/corpus"
)

func TestSentences(t *testing.T) {
	t.Run("Should split on period followed by whitespace", func(t *testing.T) {
		got := Sentences("Una.\nDos. Tres   tiene 3.5 litros.")
		assert.Equal(t, []string{"Una.", "Dos.", "Tres tiene 3.5 litros."}, got)
	})
	t.Run("Should split on paragraph breaks", func(t *testing.T) {
		got := Sentences("Título sin punto\n\nPrimera frase. Segunda\nlínea")
		assert.Equal(t, []string{"Título sin punto", "Primera frase.", "Segunda línea"}, got)
	})
	t.Run("Should return nothing for blank text", func(t *testing.T) {
		assert.Empty(t, Sentences("  \n\n "))
	})
}

func TestChunkerOverlapByWords(t *testing.T) {
	c := New(60, 2)
	doc := corpus.NewDocument("suculentas.txt",
		"Las suculentas almacenan agua. Riega cada dos semanas. Evita el exceso de agua.")

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Las suculentas almacenan agua. Riega cada dos semanas.", chunks[0].Text)
	assert.Equal(t, "dos semanas. Evita el exceso de agua.", chunks[1].Text)
	assert.Equal(t, "suculentas.txt_chunk_0", chunks[0].ID)
	assert.Equal(t, "suculentas.txt_chunk_1", chunks[1].ID)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, len([]rune(chunks[1].Text)), chunks[1].CharCount)
}

func TestChunkerLongSentenceKeptWhole(t *testing.T) {
	long := "Esta oración es mucho más larga que el límite permitido."
	c := New(20, 1)
	chunks, err := c.Chunk(corpus.NewDocument("a.txt", "Corto uno. "+long+" Fin."))
	require.NoError(t, err)

	found := 0
	for _, ch := range chunks {
		assert.NotEmpty(t, ch.Text)
		if strings.Contains(ch.Text, long) {
			found++
		}
	}
	assert.Equal(t, 1, found)
	assert.Equal(t, "permitido. Fin.", chunks[len(chunks)-1].Text)
}

func TestChunkerCoversEverySentence(t *testing.T) {
	text := strings.Repeat("El riego depende de la estación del año. La luz indirecta favorece el crecimiento. ", 12) +
		"Las raíces podridas huelen mal."
	c := New(DefaultSize, DefaultOverlap)
	chunks, err := c.Chunk(corpus.NewDocument("guia.md", text))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var joined strings.Builder
	for _, ch := range chunks {
		joined.WriteString(ch.Text)
		joined.WriteString(" ")
	}
	for _, s := range Sentences(text) {
		assert.Contains(t, joined.String(), s)
	}
}

func TestChunkerDeterministic(t *testing.T) {
	c := New(80, 5)
	doc := corpus.NewDocument("b.txt", "Primera frase corta. Segunda frase algo más larga que la primera. Tercera. Cuarta frase final.")
	a, err := c.Chunk(doc)
	require.NoError(t, err)
	b, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChunkerEmptyDocument(t *testing.T) {
	_, err := New(0, 0).Chunk(corpus.NewDocument("vacio.txt", "  "))
	require.ErrorIs(t, err, ErrEmptyDocument)
}
