package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/liao/plantcare/internal/textnorm"
)

// Pass 纯文本变换，输入不被修改
type Pass struct {
	Name string
	Fn   func(string) string
}

var (
	headerRun   = regexp.MustCompile(`#+[ \t]*`)
	ellipsis    = regexp.MustCompile(`(?:\.|…){2,}|…`)
	boilerplate = regexp.MustCompile(`(?im)(^|[.!?][ \t]+)[ \t]*(?:basándome en la información disponible|basandome en la informacion disponible|según los documentos|segun los documentos|según la información|segun la informacion|de acuerdo (?:a|con) (?:los documentos|la información|la informacion)|con base en (?:los documentos|la información|la informacion)|basándome en|basandome en)[:,]?[ \t]*`)
	bareBullet  = regexp.MustCompile(`^[\d.\-•*·)\s]+$`)
	techLine    = regexp.MustCompile(`^(?:\d+[.)]|[-•*·])\s+`)
	spaces      = regexp.MustCompile(`[ \t]+`)
)

// 语料里常见的章节标题，原样出现说明模型在照抄文档
var sectionTitles = map[string]bool{
	"cuidados basicos":      true,
	"cuidados":              true,
	"riego":                 true,
	"luz":                   true,
	"iluminacion":           true,
	"sustrato":              true,
	"temperatura":           true,
	"humedad":               true,
	"fertilizacion":         true,
	"abono":                 true,
	"plagas y enfermedades": true,
	"problemas comunes":     true,
	"propagacion":           true,
	"trasplante":            true,
	"poda":                  true,
	"paso a paso":           true,
	"pasos":                 true,
	"materiales necesarios": true,
	"materiales":            true,
	"informacion general":   true,
	"caracteristicas":       true,
	"consejos":              true,
	"consejos adicionales":  true,
	"resumen":               true,
	"introduccion":          true,
	"procedimiento":         true,
	"sintomas":              true,
	"causas":                true,
	"solucion":              true,
	"soluciones":            true,
	"prevencion":            true,
	"ficha tecnica":         true,
	"datos tecnicos":        true,
}

// StripMarkup 去掉标题井号、粗体/斜体标记和代码围栏
func StripMarkup(s string) string {
	for {
		out := headerRun.ReplaceAllString(s, "")
		out = strings.NewReplacer("**", "", "__", "", "```", "").Replace(out)
		if out == s {
			return out
		}
		s = out
	}
}

// CollapseEllipses 删除省略号（截断痕迹）
func CollapseEllipses(s string) string {
	return ellipsis.ReplaceAllString(s, "")
}

// RemoveBoilerplate 删除句首的"根据文档"类套话，后文首字母大写
func RemoveBoilerplate(s string) string {
	for {
		loc := boilerplate.FindStringSubmatchIndex(s)
		if loc == nil {
			return s
		}
		s = s[:loc[3]] + capitalizeFirst(s[loc[1]:])
	}
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// RemoveSectionTitles 删除章节标题行及其后紧跟的短编号/列表行；纯编号行一律删除
func RemoveSectionTitles(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	skipping := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			skipping = false
			out = append(out, line)
		case bareBullet.MatchString(trimmed):
			// 纯编号/符号
		case isSectionTitle(trimmed):
			skipping = true
		case skipping && isTechnicalLine(trimmed):
		default:
			skipping = false
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func isSectionTitle(line string) bool {
	key := strings.TrimSpace(strings.TrimRight(textnorm.Fold(line), ":"))
	return sectionTitles[key]
}

func isTechnicalLine(line string) bool {
	return techLine.MatchString(line) && utf8.RuneCountInString(line) <= 80
}

// CollapseWhitespace 行内空白压成一个空格，最多保留一个空行
func CollapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(spaces.ReplaceAllString(line, " "))
		if line == "" {
			if len(out) > 0 && !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// EnsureTerminalPunctuation 结尾补句号
func EnsureTerminalPunctuation(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	s = strings.TrimRight(s, ",;:")
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if s == "" {
		return s
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	if r == '.' || r == '!' || r == '?' {
		return s
	}
	return s + "."
}

// aggressiveFilter 丢掉含标记的行和全大写短标题
func aggressiveFilter(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if HasMarkup(trimmed) || isCapsTitle(trimmed) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isCapsTitle(line string) bool {
	if line == "" || len(strings.Fields(line)) > 6 {
		return false
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters >= 2
}

// failOpen 去掉标记和空行，保留行结构
func failOpen(s string) string {
	lines := strings.Split(StripMarkup(s), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
