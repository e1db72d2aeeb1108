package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPasses(t *testing.T) {
	t.Run("StripMarkup", func(t *testing.T) {
		assert.Equal(t, "Riego\nRiega poco", StripMarkup("## Riego\nRiega **poco**"))
		assert.Equal(t, "Luz media", StripMarkup("Luz #### media"))
		assert.Equal(t, "code", StripMarkup("```code```"))
		assert.Equal(t, "", StripMarkup("*#*"))
	})
	t.Run("CollapseEllipses", func(t *testing.T) {
		assert.Equal(t, "Riega poco y espera", CollapseEllipses("Riega poco... y espera…"))
		assert.Equal(t, "3.5 litros.", CollapseEllipses("3.5 litros."))
	})
	t.Run("RemoveBoilerplate", func(t *testing.T) {
		assert.Equal(t,
			"Las suculentas necesitan poco riego",
			RemoveBoilerplate("Según los documentos, las suculentas necesitan poco riego"))
		assert.Equal(t,
			"Riega poco. El sol directo las quema",
			RemoveBoilerplate("Riega poco. Basándome en la información disponible: el sol directo las quema"))
		assert.Equal(t, "Riega de acuerdo a la estación", RemoveBoilerplate("Riega de acuerdo a la estación"))
	})
	t.Run("RemoveSectionTitles", func(t *testing.T) {
		in := "Trasplante:\n1. Sacar de maceta\n2. Limpiar raíces\nDespués riega con moderación"
		assert.Equal(t, "Después riega con moderación", RemoveSectionTitles(in))
		assert.Equal(t, "Luz indirecta\nRiega poco", RemoveSectionTitles("Luz indirecta\n3.\n-\nRiega poco"))
		assert.Equal(t, "1. Sacar de maceta", RemoveSectionTitles("1. Sacar de maceta"))
	})
	t.Run("CollapseWhitespace", func(t *testing.T) {
		assert.Equal(t, "a b\n\nc d", CollapseWhitespace("  a   b \n\n\n\n c\t\td  \n\n"))
	})
	t.Run("EnsureTerminalPunctuation", func(t *testing.T) {
		assert.Equal(t, "Riega poco.", EnsureTerminalPunctuation("Riega poco:"))
		assert.Equal(t, "¿Necesitas ayuda?", EnsureTerminalPunctuation("¿Necesitas ayuda?"))
		assert.Equal(t, "", EnsureTerminalPunctuation("  "))
	})
}

func TestSanitize(t *testing.T) {
	got := Sanitize("## Riego\n\n**Riega** cada semana...")
	assert.Equal(t, "Riega cada semana.", got)

	got = Sanitize("Según la información: las orquídeas prefieren luz indirecta")
	assert.Equal(t, "Las orquídeas prefieren luz indirecta.", got)
}

func TestSanitizeNeverEmpty(t *testing.T) {
	assert.Equal(t, MinimalResponse, Sanitize("# "))
	assert.Equal(t, MinimalResponse, Sanitize("**"))
	// fail open: passes would remove everything, the trimmed input survives
	assert.Equal(t, "1.", Sanitize("1."))
}

func TestSanitizeProperties(t *testing.T) {
	inputs := []string{
		"",
		"hola",
		"# CUIDADOS BÁSICOS\n\n1. Riego\n2. Luz\n\nLas suculentas necesitan poco riego...",
		"**Importante**: no riegues en exceso…",
		"RIEGO\n- Cada 10 días\n- Menos en invierno\n\nCon base en los documentos, riega poco",
		"Texto normal\n_..._",
		"...",
		"```\ncodigo\n```",
		"#####",
		"Paso a paso\n\n\n\n   1)   Corta   el tallo   \n\nDeja secar dos días",
		"¿Qué pasa si riego mucho? Se pudren las raíces!",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.NotEmpty(t, once, "input %q", in)
		assert.False(t, HasMarkup(once), "input %q produced %q", in, once)
		assert.Equal(t, once, Sanitize(once), "not idempotent for %q", in)
	}
}

func TestAggressiveFilter(t *testing.T) {
	in := "CUIDADOS DEL CACTUS\nRiega cada dos semanas\n## titulo\nEvita el exceso"
	assert.Equal(t, "Riega cada dos semanas\nEvita el exceso", aggressiveFilter(in))
}

func TestLight(t *testing.T) {
	assert.Equal(t, "Hola mundo", Light("### Hola...  mundo"))
	assert.Equal(t, "", Light("..."))
	assert.Equal(t, "Riego\nsin puntuación", Light("Riego\nsin puntuación"))
}

func TestPassesOrder(t *testing.T) {
	names := make([]string, 0)
	for _, p := range Passes() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"strip_markup",
		"collapse_ellipses",
		"remove_boilerplate",
		"remove_section_titles",
		"collapse_whitespace",
		"ensure_terminal_punctuation",
	}, names)
}
