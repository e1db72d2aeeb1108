package answer

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/liao/plantcare/internal/ai"
	"github.com/liao/plantcare/internal/sanitize"
	"github.com/liao/plantcare/internal/textnorm"
)

// ErrNoMatch 没有句子同时满足问题词和意图词
var ErrNoMatch = errors.New("no sentence matches the question")

// Intent 问题类型
type Intent string

const (
	IntentWhatIf    Intent = "what_if"
	IntentFrequency Intent = "frequency"
	IntentHow       Intent = "how"
	IntentWhy       Intent = "why"
	IntentWhat      Intent = "what"
	IntentGeneral   Intent = "general"
)

type intentRule struct {
	maxLen    int // 句子长度上限（不含）
	limit     int // 最多取几句
	cap       int // 输出字符上限
	triggers  []string
	needQuery bool
}

var intentRules = map[Intent]intentRule{
	IntentWhatIf: {300, 4, 800, []string{"pasa", "ocurre", "resultado", "efecto", "solucion", "hacer", "debe", "puede", "deberia", "recomienda", "importante"}, true},
	IntentHow: {400, 6, 1200, []string{"paso", "metodo", "proceso", "instruccion", "debe", "deberia", "necesita", "requiere",
		"importante", "recomienda", "cuidar", "riego", "luz", "suelo", "agua", "maceta", "trasplante"}, true},
	IntentWhy:       {300, 4, 800, []string{"causa", "razon", "motivo", "porque", "debido", "provoca", "ocasiona"}, true},
	IntentFrequency: {300, 4, 800, []string{"cada", "semana", "dia", "dias", "vez", "frecuencia", "periodo", "intervalo"}, false},
	IntentWhat:      {300, 5, 1000, nil, true},
	IntentGeneral:   {300, 5, 1000, nil, true},
}

// 长度下限（不含）
const minSentenceLen = 30

var plantTypes = []string{"suculenta", "cactus", "planta", "orquidea", "helecho", "bonsai"}

var plantIntros = map[string]string{
	"cactus":    "Los cactus son plantas muy resistentes que requieren cuidados específicos.",
	"suculenta": "Las suculentas son plantas que almacenan agua y son perfectas para principiantes.",
}

var bareNumber = regexp.MustCompile(`^[\d\s.,]+$`)

// DetectIntent 按前缀/子串判断意图，顺序有意义
func DetectIntent(question string) Intent {
	q := strings.Join(textnorm.FoldedWords(question), " ")
	switch {
	case containsAny(q, "que pasa si", "que pasa cuando", "what if"):
		return IntentWhatIf
	case containsAny(q, "cada cuanto", "con que frecuencia", "how often"):
		return IntentFrequency
	case hasAnyPrefix(q, "como ", "how "):
		return IntentHow
	case hasAnyPrefix(q, "por que ", "porque ", "why "):
		return IntentWhy
	case hasAnyPrefix(q, "que ", "what ", "cual ", "cuales "):
		return IntentWhat
	}
	return IntentGeneral
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Extract 从段落里挑句子拼成回答，没有匹配时返回 ErrNoMatch
func Extract(question string, passages []ai.Passage) (string, error) {
	intent := DetectIntent(question)
	rule := intentRules[intent]

	var terms []string
	for _, w := range textnorm.FoldedWords(question) {
		if utf8.RuneCountInString(w) > 3 {
			terms = append(terms, w)
		}
	}
	if rule.needQuery && len(terms) == 0 {
		return "", ErrNoMatch
	}

	plantType := ""
	if intent == IntentHow {
		folded := textnorm.Fold(question)
		for _, p := range plantTypes {
			if strings.Contains(folded, p) {
				plantType = p
				break
			}
		}
	}

	var picked []string
	seen := make(map[string]bool)
	for _, p := range passages {
		for _, sentence := range strings.Split(cleanPassage(p.Text), ".") {
			sentence = strings.Join(strings.Fields(sentence), " ")
			n := utf8.RuneCountInString(sentence)
			if n <= minSentenceLen || n >= rule.maxLen || seen[sentence] {
				continue
			}
			if !rule.accepts(textnorm.Fold(sentence), terms, plantType) {
				continue
			}
			seen[sentence] = true
			picked = append(picked, sentence+".")
			if len(picked) == rule.limit {
				break
			}
		}
		if len(picked) == rule.limit {
			break
		}
	}
	if len(picked) == 0 {
		return "", ErrNoMatch
	}

	if intro, ok := plantIntros[plantType]; ok {
		picked = append([]string{intro}, picked...)
	}
	return truncateWithEllipsis(strings.Join(picked, " "), rule.cap), nil
}

func (r intentRule) accepts(sentence string, terms []string, plantType string) bool {
	hasTerm := containsAny(sentence, terms...)
	if r.triggers == nil {
		return hasTerm
	}
	hasTrigger := containsAny(sentence, r.triggers...)
	if plantType != "" && strings.Contains(sentence, plantType) {
		hasTrigger = true
	}
	if !r.needQuery {
		return hasTrigger
	}
	return hasTerm && hasTrigger
}

// cleanPassage 去掉标记、短行和纯数字行
func cleanPassage(text string) string {
	lines := strings.Split(sanitize.StripMarkup(text), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= 10 || bareNumber.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func truncateWithEllipsis(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

type heuristicStrategy struct{}

func (heuristicStrategy) Name() string { return StrategyHeuristic }

func (heuristicStrategy) Generate(_ context.Context, in Input) (string, error) {
	return Extract(in.Question, in.Trusted)
}
