package topic

import (
	"regexp"
	"strings"

	"github.com/liao/plantcare/internal/textnorm"
)

// OutOfDomainMessage 非植物问题的固定回复
const OutOfDomainMessage = "Me especializo en el cuidado de plantas, así que no puedo ayudarte con esa pregunta. " +
	"Pregúntame sobre riego, luz, sustrato, plagas, trasplantes o cómo cuidar una especie en particular."

// 护理关键词和物种名，按词首匹配（折叠后）
var careKeywords = []string{
	"rieg", "regar", "regando", "abon", "fertiliz", "nutrient", "poda", "podar",
	"trasplant", "plaga", "pulgon", "cochinilla", "arana roja", "mosca blanca", "hongo",
	"sustrato", "maceta", "esqueje", "propagar", "propagacion", "germin", "cultiv", "drenaje",
	"marchit", "pudric", "podrid", "fotosintesis", "clorofila",
	"suculenta", "cactus", "cacto", "orquidea", "helecho", "bonsai", "monstera",
	"pothos", "potus", "sansevieria", "ficus", "aloe", "crasula", "echeveria",
	"begonia", "geranio", "rosal", "lavanda", "albahaca", "calathea", "anturio",
	"espatifilo", "dracena", "zamioculca", "tomatera", "hortaliza",
	"watering", "repot", "prune", "pruning", "succulent", "houseplant", "propagate",
}

// 泛指植物的名词，只在非概念性问题里算数
var plantNouns = []string{
	"planta", "hoja", "flor", "raiz", "raices", "semilla", "tierra", "jardin",
	"arbol", "tallo", "rama", "brote", "luz", "agua", "sol", "huerto",
	"plant", "leaf", "leaves", "flower", "root", "seed", "soil", "garden",
}

// 定义性提问：固定句式，或 "que es/what is" 加冠词和至多三个词直到句末
var (
	definitionForms = regexp.MustCompile(`^(?:que significa|define|definicion de|cual es el significado|what does \S+ mean)\b`)
	whatIs          = regexp.MustCompile(`^(?:que (?:es|son)|what (?:is|are)) (?:(?:un|una|unos|unas|el|la|los|las|lo|a|an|the) )?(\S+)(?: \S+){0,2}$`)
)

// 比较级开头的 "que es mejor ..." 不是定义
var comparatives = map[string]bool{
	"mejor": true, "peor": true, "mas": true, "menos": true, "preferible": true, "recomendable": true,
	"better": true, "best": true, "worse": true,
}

func isConceptual(joined string) bool {
	if definitionForms.MatchString(joined) {
		return true
	}
	m := whatIs.FindStringSubmatch(joined)
	return m != nil && !comparatives[m[1]]
}

// Gate 判断一条消息是否属于植物养护领域
type Gate struct {
	care  []string
	nouns []string
}

func NewGate() *Gate {
	return &Gate{care: careKeywords, nouns: plantNouns}
}

// IsInDomain 概念性问题必须含护理关键词；其他问题含护理关键词或植物名词即可
func (g *Gate) IsInDomain(message string) bool {
	folded := textnorm.Fold(message)
	words := textnorm.Words(folded)
	if len(words) == 0 {
		return false
	}

	hasCare := g.matchAny(words, folded, g.care)
	if isConceptual(strings.Join(words, " ")) {
		return hasCare
	}
	return hasCare || g.matchNoun(words)
}

// matchAny 护理词按词首匹配，多词短语按子串匹配
func (g *Gate) matchAny(words []string, folded string, vocab []string) bool {
	for _, kw := range vocab {
		if strings.Contains(kw, " ") {
			if strings.Contains(folded, kw) {
				return true
			}
			continue
		}
		if textnorm.ContainsWord(words, kw) {
			return true
		}
	}
	return false
}

// matchNoun 名词只接受原形和复数，避免 "sol" 命中 "solo"
func (g *Gate) matchNoun(words []string) bool {
	for _, w := range words {
		for _, n := range g.nouns {
			if w == n || w == n+"s" || w == n+"es" {
				return true
			}
		}
	}
	return false
}
