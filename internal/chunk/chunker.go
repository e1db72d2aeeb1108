package chunk

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/liao/plantcare/internal/corpus"
)

const (
	DefaultSize    = 400
	DefaultOverlap = 50
)

var ErrEmptyDocument = errors.New("document has no content")

// Chunk 文档切出的一段文本
type Chunk struct {
	ID         string `json:"chunk_id"`
	SourceName string `json:"source_file"`
	Index      int    `json:"chunk_index"`
	Text       string `json:"text"`
	CharCount  int    `json:"char_count"`
}

// ChunkID 由来源名和序号生成稳定 ID
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", source, index)
}

// Chunker 按句子边界切分文档，相邻块之间按词重叠
type Chunker struct {
	Size    int // 每块字符数上限（单句超长时例外）
	Overlap int // 重叠词数
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Chunk 切分单个文档
func (c *Chunker) Chunk(doc corpus.Document) ([]Chunk, error) {
	if strings.TrimSpace(doc.RawText) == "" {
		return nil, fmt.Errorf("chunk %s: %w", doc.SourceName, ErrEmptyDocument)
	}

	texts := c.Split(doc.RawText)
	chunks := make([]Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, Chunk{
			ID:         ChunkID(doc.SourceName, i),
			SourceName: doc.SourceName,
			Index:      i,
			Text:       t,
			CharCount:  utf8.RuneCountInString(t),
		})
	}
	return chunks, nil
}

// Split 返回切好的文本块
func (c *Chunker) Split(text string) []string {
	var (
		out    []string
		buffer string
	)
	for _, sentence := range Sentences(text) {
		if buffer != "" && runeLen(buffer)+1+runeLen(sentence) > c.Size {
			out = append(out, buffer)
			buffer = joinSpace(c.tail(buffer), sentence)
			continue
		}
		buffer = joinSpace(buffer, sentence)
	}
	if buffer != "" {
		out = append(out, buffer)
	}
	return out
}

// tail 取最后 Overlap 个词
func (c *Chunker) tail(s string) string {
	if c.Overlap == 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > c.Overlap {
		words = words[len(words)-c.Overlap:]
	}
	return strings.Join(words, " ")
}

// 句号后接空白，或空行分段
var boundary = regexp.MustCompile(`\.\s+|\n[ \t\r]*\n\s*`)

// Sentences 切句，句内空白压缩为单个空格
func Sentences(text string) []string {
	var (
		out  []string
		prev int
	)
	add := func(s string) {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			out = append(out, s)
		}
	}
	for _, m := range boundary.FindAllStringIndex(text, -1) {
		end := m[0]
		if text[m[0]] == '.' {
			end++
		}
		add(text[prev:end])
		prev = m[1]
	}
	add(text[prev:])
	return out
}

func joinSpace(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
