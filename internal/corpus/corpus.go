package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// Document 一份原始知识文档
type Document struct {
	ID         uuid.UUID
	SourceName string
	RawText    string
}

// NewDocument 以来源名生成稳定 ID
func NewDocument(source, text string) Document {
	return Document{
		ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)),
		SourceName: source,
		RawText:    text,
	}
}

var supported = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

// LoadDir 递归读取目录下的 txt/md/html 文档，按来源名排序
func LoadDir(ctx context.Context, dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !supported[ext] {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		rel = filepath.ToSlash(rel)

		var text string
		if ext == ".html" || ext == ".htm" {
			text, err = parseHTMLFile(path)
		} else {
			var data []byte
			data, err = os.ReadFile(path)
			text = string(data)
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			slog.Warn("skipping empty document", "source", rel)
			return nil
		}
		docs = append(docs, NewDocument(rel, text))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", dir, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceName < docs[j].SourceName })
	slog.Info("corpus loaded", "dir", dir, "documents", len(docs))
	return docs, nil
}

// parseHTMLFile 提取 HTML 正文，块级元素之间用空行分段
func parseHTMLFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	return HTMLText(doc), nil
}

// HTMLText 把已解析的 HTML 转成段落文本
func HTMLText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, blockquote, pre").Each(func(i int, s *goquery.Selection) {
		// 嵌套块只取最内层
		if s.Find("p, li, td, blockquote, pre").Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
	return strings.Join(paragraphs, "\n\n")
}
