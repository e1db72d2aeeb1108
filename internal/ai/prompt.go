package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/liao/plantcare/internal/chat"
)

// Request 一次生成请求
type Request struct {
	System  string
	History chat.History
	Prompt  string
}

// Passage 带来源的参考段落
type Passage struct {
	Text   string
	Source string
	Score  float64
}

// CorrectiveInstruction 第一次输出仍带格式标记时追加到提示里
const CorrectiveInstruction = "IMPORTANTE: tu respuesta anterior incluía símbolos de formato (#, **, listas numeradas). " +
	"Responde de nuevo solo con párrafos de texto corrido, sin títulos, sin símbolos y sin copiar el documento."

// BuildSystemPrompt 组装远程模型的 System Prompt
func BuildSystemPrompt() string {
	var b strings.Builder

	b.WriteString("Eres un asistente experto en el cuidado de plantas. Respondes en español, con un tono cálido y cercano.\n\n")

	b.WriteString("Reglas de respuesta\n")
	b.WriteString("1. Escribe solo párrafos de texto corrido con oraciones completas.\n")
	b.WriteString("2. No uses títulos, símbolos de almohadilla, negritas, listas numeradas ni viñetas.\n")
	b.WriteString("3. No copies literalmente el material de referencia; explícalo con tus propias palabras.\n")
	b.WriteString("4. No uses puntos suspensivos ni dejes frases incompletas.\n")
	b.WriteString("5. No empieces con frases como \"Según los documentos\" o \"Basándome en la información\".\n")
	b.WriteString("6. Si el material no cubre la pregunta, da un consejo general prudente y dilo con honestidad.\n")

	return b.String()
}

// BuildUserPrompt 问题 + 检索到的参考资料；confident 决定资料是权威还是仅供参考
func BuildUserPrompt(question string, passages []Passage, confident bool) string {
	var b strings.Builder

	if len(passages) > 0 {
		if confident {
			b.WriteString("Material de referencia (fiable, úsalo como base de tu respuesta):\n")
		} else {
			b.WriteString("Material de referencia (poco relacionado, úsalo solo como pista):\n")
		}
		for i, p := range passages {
			fmt.Fprintf(&b, "Fragmento %d (%s):\n%s\n\n", i+1, p.Source, p.Text)
		}
	}

	fmt.Fprintf(&b, "Pregunta del usuario: %s\n", question)
	b.WriteString("Respuesta (dos o tres párrafos breves, sin formato):")
	return b.String()
}

// BuildLocalPrompt 本地小模型用的简化提示，上下文截断到 maxChars
func BuildLocalPrompt(question string, history chat.History, passages []Passage, maxChars int) string {
	var b strings.Builder

	b.WriteString("Eres un experto en plantas. Responde en español, en texto corrido, sin títulos ni listas.\n\n")

	if len(history) > 0 {
		b.WriteString("Conversación reciente:\n")
		for _, t := range history {
			who := "Usuario"
			if t.Role == chat.RoleAssistant {
				who = "Asistente"
			}
			fmt.Fprintf(&b, "%s: %s\n", who, t.Content)
		}
		b.WriteString("\n")
	}

	var ctx strings.Builder
	for _, p := range passages {
		ctx.WriteString(p.Text)
		ctx.WriteString("\n")
	}
	if c := truncateRunes(strings.TrimSpace(ctx.String()), maxChars); c != "" {
		fmt.Fprintf(&b, "Información:\n%s\n\n", c)
	}

	fmt.Fprintf(&b, "Pregunta: %s\nRespuesta:", question)
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
