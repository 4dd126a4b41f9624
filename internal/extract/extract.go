// Package extract pulls plain text out of uploaded resume documents.
package extract

import (
	"bytes"
	"fmt"
	"html"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"atsmatch/internal/errors"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Kind identifies a supported document format
type Kind string

const (
	KindUnknown Kind = ""
	KindPDF     Kind = "pdf"
	KindDOCX    Kind = "docx"
	KindText    Kind = "text"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

var mimeKinds = map[string]Kind{
	MimePDF:             KindPDF,
	"application/x-pdf": KindPDF,
	MimeDOCX:            KindDOCX,
	MimeText:            KindText,
	"text/markdown":     KindText,
}

var extensionKinds = map[string]Kind{
	".pdf":  KindPDF,
	".docx": KindDOCX,
	".txt":  KindText,
	".md":   KindText,
}

var pdfMagic = []byte("%PDF-")

// Detect resolves the document kind from its content type, then its file
// extension, then its leading bytes.
func Detect(data []byte, filename, contentType string) Kind {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if kind, ok := mimeKinds[strings.ToLower(mediaType)]; ok {
				return kind
			}
		}
	}
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(filename))]; ok {
		return kind
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return KindPDF
	}
	return KindUnknown
}

// Text extracts the text of a PDF, DOCX or plain-text document.
func Text(data []byte, filename, contentType string) (string, error) {
	switch Detect(data, filename, contentType) {
	case KindPDF:
		return pdfText(data)
	case KindDOCX:
		return docxText(data)
	case KindText:
		if !utf8.Valid(data) {
			return "", errors.NewIOError(errors.ErrCodeExtractionFailed, "text document is not valid UTF-8", nil).
				WithContext("filename", filename)
		}
		return string(data), nil
	default:
		return "", errors.NewUnsupportedError(errors.ErrCodeUnsupportedDocument,
			"unsupported document type; upload a PDF, DOCX or plain-text resume", nil).
			WithContext("filename", filename).
			WithContext("content_type", contentType)
	}
}

// pdfText joins the plain text of every non-empty page with newlines.
func pdfText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewIOError(errors.ErrCodeExtractionFailed, "failed to parse PDF", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeExtractionFailed, "failed to read PDF", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", errors.NewIOError(errors.ErrCodeExtractionFailed, "failed to extract PDF page text", err).
				WithContext("page", i)
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}

var (
	docxBreakPattern = regexp.MustCompile(`</w:p>|<w:br[^>]*/>|<w:tab[^>]*/>`)
	xmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// docxText reads the main document part and strips its markup. Paragraph
// ends and breaks become newlines.
func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeExtractionFailed, "failed to parse DOCX", err)
	}
	defer doc.Close()

	return StripXML(doc.Editable().GetContent()), nil
}

// StripXML turns WordprocessingML into plain text
func StripXML(content string) string {
	content = docxBreakPattern.ReplaceAllString(content, "\n")
	content = xmlTagPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content))
}
