package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/liao/plantcare/internal/textnorm"
)

// CapabilityMessage 没有任何匹配时的最终回答
const CapabilityMessage = "Puedo ayudarte con el cuidado de suculentas y cactus, con problemas comunes como hojas amarillas, plagas u hojas caídas, " +
	"con la frecuencia de riego, el trasplante y la propagación, y con la elección de plantas de interior. " +
	"Prueba a preguntarme, por ejemplo, cómo cuidar una suculenta o por qué se ponen amarillas las hojas."

type cannedEntry struct {
	key  string
	text string
}

type keywordEntry struct {
	keyword string
	key     string
}

// Canned 预置问答表，按顺序匹配
type Canned struct {
	entries  []cannedEntry
	keywords []keywordEntry
}

var defaultEntries = []cannedEntry{
	{"como cuido una suculenta", "Las suculentas guardan agua en sus hojas y tallos, por eso aguantan bien la sequía y son ideales para empezar. " +
		"Riégalas solo cuando la tierra esté completamente seca, más o menos cada una o dos semanas en verano y cada dos a cuatro en invierno; el exceso de agua es el error más habitual.\n\n" +
		"Necesitan al menos seis horas de luz al día, así que en interior colócalas junto a la ventana más soleada. " +
		"Usa un sustrato para cactus con buen drenaje, al que puedes añadir perlita o arena gruesa, y protégelas de temperaturas por debajo de diez grados.\n\n" +
		"También se propagan con facilidad: deja secar unos días una hoja o un esqueje y colócalo sobre tierra apenas húmeda, en pocas semanas verás raíces nuevas."},
	{"como cuido un cactus", "Los cactus son plantas muy resistentes, perfectas si viajas a menudo o tienes poco tiempo. " +
		"Riégalos mucho menos que otras plantas: cada dos o tres semanas en verano, siempre con la tierra seca, y una vez al mes o menos en invierno.\n\n" +
		"Dales el lugar más soleado de la casa, idealmente cerca de una ventana orientada al sur o al oeste. " +
		"Plántalos en una mezcla para cactus o en tierra normal con arena y perlita, y usa siempre una maceta con agujeros de drenaje porque no toleran el agua estancada.\n\n" +
		"La mayoría se siente cómoda entre diez y treinta grados, y algunos soportan hasta cinco si el sustrato está seco."},
	{"que plantas son buenas para interior", "Hay muchas plantas de interior agradecidas y fáciles de mantener. " +
		"El pothos crece rápido y tolera poca luz y riegos irregulares, y la sansevieria aguanta semanas sin agua, por lo que va muy bien en oficinas.\n\n" +
		"La monstera luce hojas grandes y decorativas y pide luz indirecta brillante con riego moderado. " +
		"Los helechos prefieren baños o rincones húmedos con la tierra siempre fresca, y las suculentas encajan en ventanas soleadas con muy poco cuidado.\n\n" +
		"Cualquiera de ellas se adapta bien a la vida dentro de casa; si me cuentas cuánta luz tienes te digo cuál encaja mejor."},
	{"por que se ponen amarillas las hojas", "Las hojas amarillas suelen deberse al riego excesivo: las raíces se ahogan y dejan de absorber nutrientes, así que conviene dejar secar la tierra antes de volver a regar. " +
		"La falta de agua también las amarillea y hace que caigan, en ese caso riega cuando los primeros centímetros estén secos.\n\n" +
		"La escasez de luz impide la fotosíntesis y produce el mismo síntoma, por lo que ayuda mover la planta a un sitio más iluminado. " +
		"Si faltan nutrientes, abona durante la temporada de crecimiento.\n\n" +
		"Ten en cuenta que las hojas viejas de la parte inferior amarillean de forma natural; si el problema aparece en las hojas nuevas, revisa el riego primero."},
	{"cada cuanto debo regar mis plantas", "La frecuencia depende del tipo de planta, del tamaño de la maceta, de la temperatura y de la humedad. " +
		"Las suculentas y los cactus se riegan cada una o dos semanas en verano y cada dos a cuatro en invierno, siempre con la tierra seca.\n\n" +
		"Plantas de interior comunes como el pothos o la monstera piden agua cada cinco a diez días, las tropicales cada tres a siete y los helechos cada dos a cuatro, porque necesitan la tierra siempre húmeda.\n\n" +
		"Como regla general es mejor quedarse corto que pasarse. Introduce el dedo dos o tres centímetros en la tierra: si está seca toca regar, y si está húmeda espera unos días más."},
	{"que pasa si arranco una hoja sin querer de mi suculenta", "No te preocupes, perder una hoja no pone en riesgo a tu suculenta, son plantas muy resistentes y lo superan sin problema. " +
		"Mantén la tierra seca unos días y espera dos o tres antes de regar para que la herida cicatrice.\n\n" +
		"Si la hoja salió entera puedes aprovecharla para obtener una planta nueva: déjala secar unos días, colócala sobre tierra seca y en dos a cuatro semanas empezará a echar raíces. " +
		"La planta madre seguirá creciendo con normalidad."},
	{"como trasplanto una planta", "El mejor momento para trasplantar es la primavera o el comienzo del verano, cuando la planta está en pleno crecimiento. " +
		"Elige una maceta solo dos a cinco centímetros más grande que la actual, con una capa de drenaje en el fondo y tierra fresca encima.\n\n" +
		"Riega ligeramente el día anterior, saca la planta sujetándola por la base del tallo y revisa las raíces: desenreda con suavidad las que estén muy enrolladas y corta las podridas. " +
		"Colócala en el centro de la nueva maceta, rellena con tierra presionando un poco y riega con moderación.\n\n" +
		"Durante los primeros días déjala en un lugar con luz indirecta para que se adapte."},
}

var defaultKeywords = []keywordEntry{
	{"arrancar", "que pasa si arranco una hoja sin querer de mi suculenta"},
	{"arranque", "que pasa si arranco una hoja sin querer de mi suculenta"},
	{"hoja caida", "que pasa si arranco una hoja sin querer de mi suculenta"},
	{"perder hoja", "que pasa si arranco una hoja sin querer de mi suculenta"},
	{"hoja rota", "que pasa si arranco una hoja sin querer de mi suculenta"},
	{"suculenta", "como cuido una suculenta"},
	{"cactus", "como cuido un cactus"},
	{"interior", "que plantas son buenas para interior"},
	{"amarilla", "por que se ponen amarillas las hojas"},
	{"regar", "cada cuanto debo regar mis plantas"},
	{"riego", "cada cuanto debo regar mis plantas"},
	{"trasplantar", "como trasplanto una planta"},
	{"trasplante", "como trasplanto una planta"},
	{"propagar", "como cuido una suculenta"},
}

// DefaultCanned 内置问答表
func DefaultCanned() *Canned {
	c := &Canned{
		entries:  make([]cannedEntry, len(defaultEntries)),
		keywords: make([]keywordEntry, len(defaultKeywords)),
	}
	copy(c.entries, defaultEntries)
	copy(c.keywords, defaultKeywords)
	return c
}

type cannedFile struct {
	Answers  map[string]string `json:"answers"`
	Keywords map[string]string `json:"keywords"`
}

// LoadCanned 在内置表基础上覆盖或追加；文件里的关键词优先匹配
func LoadCanned(path string) (*Canned, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read canned file: %w", err)
	}
	var f cannedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal canned file: %w", err)
	}

	c := DefaultCanned()
	for _, key := range sortedKeys(f.Answers) {
		c.set(textnorm.Fold(strings.TrimSpace(key)), f.Answers[key])
	}

	extra := make([]keywordEntry, 0, len(f.Keywords))
	for _, kw := range sortedKeys(f.Keywords) {
		key := textnorm.Fold(strings.TrimSpace(f.Keywords[kw]))
		if !c.has(key) {
			return nil, fmt.Errorf("canned keyword %q points to unknown answer %q", kw, f.Keywords[kw])
		}
		extra = append(extra, keywordEntry{keyword: textnorm.Fold(strings.TrimSpace(kw)), key: key})
	}
	// 长关键词先匹配
	sort.SliceStable(extra, func(i, j int) bool { return len(extra[i].keyword) > len(extra[j].keyword) })
	c.keywords = append(extra, c.keywords...)
	return c, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Canned) set(key, text string) {
	for i := range c.entries {
		if c.entries[i].key == key {
			c.entries[i].text = text
			return
		}
	}
	c.entries = append(c.entries, cannedEntry{key: key, text: text})
}

func (c *Canned) has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

func (c *Canned) lookup(key string) (string, bool) {
	for _, e := range c.entries {
		if e.key == key {
			return e.text, true
		}
	}
	return "", false
}

// Match 先按问题键双向包含匹配，再查关键词，最后返回能力说明；总是非空
func (c *Canned) Match(question string) string {
	q := strings.Join(textnorm.FoldedWords(question), " ")
	if q != "" {
		for _, e := range c.entries {
			if strings.Contains(q, e.key) || strings.Contains(e.key, q) {
				return e.text
			}
		}
		for _, kw := range c.keywords {
			if strings.Contains(q, kw.keyword) {
				if text, ok := c.lookup(kw.key); ok {
					return text
				}
			}
		}
	}
	return CapabilityMessage
}

// Len 问答条目数
func (c *Canned) Len() int { return len(c.entries) }

type cannedStrategy struct {
	table *Canned
}

func (s *cannedStrategy) Name() string { return StrategyCanned }

func (s *cannedStrategy) Generate(_ context.Context, in Input) (string, error) {
	return s.table.Match(in.Question), nil
}
