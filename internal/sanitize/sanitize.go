package sanitize

import (
	"strings"
)

// MinimalResponse 所有清洗都失败时的兜底文本
const MinimalResponse = "No pude generar una respuesta clara en este momento. Intenta reformular tu pregunta sobre el cuidado de tus plantas."

// 最多迭代次数，正常输入两轮内收敛
const maxRounds = 8

var fullPasses = []Pass{
	{"strip_markup", StripMarkup},
	{"collapse_ellipses", CollapseEllipses},
	{"remove_boilerplate", RemoveBoilerplate},
	{"remove_section_titles", RemoveSectionTitles},
	{"collapse_whitespace", CollapseWhitespace},
	{"ensure_terminal_punctuation", EnsureTerminalPunctuation},
}

var lightPasses = []Pass{
	{"strip_markup", StripMarkup},
	{"collapse_ellipses", CollapseEllipses},
	{"collapse_whitespace", CollapseWhitespace},
}

// Passes 完整清洗流程（按顺序）
func Passes() []Pass {
	out := make([]Pass, len(fullPasses))
	copy(out, fullPasses)
	return out
}

// HasMarkup 是否还残留标记
func HasMarkup(s string) bool {
	return strings.Contains(s, "#") || strings.Contains(s, "**") ||
		strings.Contains(s, "__") || strings.Contains(s, "```")
}

func apply(passes []Pass, s string) string {
	for _, p := range passes {
		s = p.Fn(s)
	}
	return s
}

// Sanitize 完整清洗，幂等，结果非空且不含标记
func Sanitize(text string) string {
	out := once(text)
	for i := 0; i < maxRounds; i++ {
		next := once(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func once(text string) string {
	out := apply(fullPasses, text)
	if out != "" && !HasMarkup(out) {
		return out
	}
	// 第二轮：逐行激进过滤后再走一遍
	out = apply(fullPasses, aggressiveFilter(text))
	if out != "" && !HasMarkup(out) {
		return out
	}
	if out = failOpen(text); out != "" {
		return out
	}
	return MinimalResponse
}

// Light 轻量清洗，用于本地模型输出；可能返回空串
func Light(text string) string {
	return apply(lightPasses, text)
}
