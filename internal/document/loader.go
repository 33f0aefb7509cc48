// Package document loads course material from disk into plain-text documents
// ready for chunking. PDF decks yield one document per page; text and
// markdown files yield a single document.
package document

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is one unit of loadable source text. Source is the originating
// file name and Locator points inside it (page-N for PDFs).
type Document struct {
	Text    string
	Source  string
	Locator string
}

// LoadDir walks dir and loads every supported file (.pdf, .txt, .md).
// Unsupported files are skipped with a debug log. A directory with no
// supported files yields an empty slice, not an error.
func LoadDir(dir string) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf":
			pages, err := LoadPDF(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			docs = append(docs, pages...)
		case ".txt", ".md":
			doc, err := LoadText(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			docs = append(docs, doc)
		default:
			slog.Debug("skipping unsupported file", "path", path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// LoadPDF extracts plain text from every page of a PDF file, one Document
// per page. Pages that yield no extractable text are skipped.
func LoadPDF(path string) ([]Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	source := filepath.Base(path)
	var docs []Document

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("failed to extract page text", "source", source, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		docs = append(docs, Document{
			Text:    text,
			Source:  source,
			Locator: fmt.Sprintf("page-%d", i),
		})
	}

	return docs, nil
}

// LoadText reads a plain-text or markdown file as a single Document.
func LoadText(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading file: %w", err)
	}

	return Document{
		Text:    strings.TrimSpace(string(data)),
		Source:  filepath.Base(path),
		Locator: "page-1",
	}, nil
}
