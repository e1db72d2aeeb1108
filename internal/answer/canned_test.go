package answer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/plantcare/internal/ai"
)

func TestCannedMatch(t *testing.T) {
	c := DefaultCanned()
	require.Equal(t, 7, c.Len())

	cases := []struct {
		question string
		prefix   string
	}{
		{"¿Cómo cuido una suculenta?", "Las suculentas guardan agua"},
		{"como cuido un cactus en mi balcón", "Los cactus son plantas muy resistentes"},
		{"se me cayó una hoja, ¿la puedo propagar?", "Las suculentas guardan agua"},
		{"mis hojas están amarillas", "Las hojas amarillas"},
		{"arranqué una hoja de la echeveria", "No te preocupes"},
		{"cuándo es buen momento para un trasplante", "El mejor momento para trasplantar"},
		{"quiero aprender astronomía", CapabilityMessage},
	}
	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(c.Match(tc.question), tc.prefix), c.Match(tc.question))
		})
	}
}

func TestLoadCanned(t *testing.T) {
	write := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "canned.json")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	t.Run("Should extend and override the defaults", func(t *testing.T) {
		path := write(t, `{
			"answers": {
				"Cómo cuido una orquídea": "Las orquídeas prefieren luz filtrada y riego por inmersión.",
				"como cuido un cactus": "Sol directo y muy poco riego."
			},
			"keywords": {"orquidea": "como cuido una orquidea"}
		}`)

		c, err := LoadCanned(path)
		require.NoError(t, err)
		assert.Equal(t, 8, c.Len())
		assert.Equal(t, "Las orquídeas prefieren luz filtrada y riego por inmersión.", c.Match("tengo una orquídea nueva"))
		assert.Equal(t, "Sol directo y muy poco riego.", c.Match("como cuido un cactus"))
		assert.Equal(t, CapabilityMessage, c.Match("quiero aprender astronomía"))
	})

	t.Run("Should reject keywords pointing nowhere", func(t *testing.T) {
		_, err := LoadCanned(write(t, `{"keywords": {"helecho": "no existe"}}`))
		assert.ErrorContains(t, err, "unknown answer")
	})

	t.Run("Should fail on missing file", func(t *testing.T) {
		_, err := LoadCanned(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestDetectIntent(t *testing.T) {
	cases := map[string]Intent{
		"¿Qué pasa si riego demasiado?":   IntentWhatIf,
		"¿Cada cuánto riego el pothos?":   IntentFrequency,
		"How often should I water":        IntentFrequency,
		"¿Cómo trasplanto un ficus?":      IntentHow,
		"¿Por qué se caen las hojas?":     IntentWhy,
		"¿Qué sustrato uso para cactus?":  IntentWhat,
		"¿Cuál abono es mejor?":           IntentWhat,
		"mi ficus pierde hojas en otoño":  IntentGeneral,
	}
	for q, want := range cases {
		assert.Equal(t, want, DetectIntent(q), q)
	}
}

func TestExtract(t *testing.T) {
	t.Run("Should pick sentences with trigger words only for frequency", func(t *testing.T) {
		passages := []ai.Passage{{Text: "Los helechos se riegan cada tres días en verano para mantener la humedad. Son originarios de bosques templados y sombríos."}}

		out, err := Extract("cada cuanto riego el helecho", passages)

		require.NoError(t, err)
		assert.Equal(t, "Los helechos se riegan cada tres días en verano para mantener la humedad.", out)
	})

	t.Run("Should require a causal trigger for why questions", func(t *testing.T) {
		passages := []ai.Passage{{Text: "Las hojas de las orquídeas florecen en primavera con buena luz."}}

		_, err := Extract("por que se caen las hojas", passages)
		assert.ErrorIs(t, err, ErrNoMatch)

		passages = append(passages, ai.Passage{Text: "Las hojas se caen debido al exceso de riego y a la falta de drenaje."})
		out, err := Extract("por que se caen las hojas", passages)
		require.NoError(t, err)
		assert.Equal(t, "Las hojas se caen debido al exceso de riego y a la falta de drenaje.", out)
	})

	t.Run("Should drop markup and short lines", func(t *testing.T) {
		passages := []ai.Passage{{Text: "# Lavanda\n\n12\n\nLa lavanda necesita sol pleno y un suelo muy bien drenado."}}

		out, err := Extract("que suelo necesita la lavanda", passages)

		require.NoError(t, err)
		assert.Equal(t, "La lavanda necesita sol pleno y un suelo muy bien drenado.", out)
	})

	t.Run("Should cap long answers with an ellipsis", func(t *testing.T) {
		var b strings.Builder
		for i := range 6 {
			b.WriteString("La lavanda variedad ")
			b.WriteString(string(rune('a' + i)))
			b.WriteString(strings.Repeat(" crece bien", 22))
			b.WriteString(". ")
		}

		out, err := Extract("que abono necesita la lavanda", []ai.Passage{{Text: b.String()}})

		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(out, "..."))
		assert.Equal(t, 1003, utf8.RuneCountInString(out))
	})

	t.Run("Should report no match without passages", func(t *testing.T) {
		_, err := Extract("como cuido un cactus", nil)
		assert.ErrorIs(t, err, ErrNoMatch)
	})
}
