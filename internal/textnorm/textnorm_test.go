package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "como cuido una orquidea", Fold("Cómo cuido una Orquídea"))
	assert.Equal(t, "por que", Fold("Por qué"))
	assert.Equal(t, "arbol", Fold("ÁRBOL"))
	assert.Equal(t, "", Fold(""))
}

func TestFoldedWords(t *testing.T) {
	words := FoldedWords("¿Qué pasa si riego   demasiado? ¡Ayuda!")
	assert.Equal(t, []string{"que", "pasa", "si", "riego", "demasiado", "ayuda"}, words)
	assert.True(t, ContainsWord(words, "rieg"))
	assert.False(t, ContainsWord(words, "abono"))
}
