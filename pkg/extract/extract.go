// Package extract pulls plain text out of uploaded files by MIME type.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/pkg/log"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

// PDFPlaceholder stands in for text of a PDF the server could not parse.
const PDFPlaceholder = "PDF document detected but text extraction failed. Please try a different PDF file or convert to text format."

var (
	// ErrNoText marks content that has no textual representation, such as images.
	ErrNoText = errors.New("no textual content")
	// ErrInvalidPDF is returned when a PDF fails extraction and does not even
	// start with the PDF header.
	ErrInvalidPDF = errors.New("invalid PDF format")
)

// DocumentParser extracts text from formats handled by an external server (Tika).
type DocumentParser interface {
	ExtractText(ctx context.Context, r io.Reader, fileName, mimeType string) (string, error)
}

type Extractor struct {
	parser DocumentParser
}

func NewExtractor(parser DocumentParser) *Extractor {
	return &Extractor{parser: parser}
}

// Extract returns the text of data. Images yield ErrNoText.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileName, mimeType string) (string, error) {
	mt := model.NormalizeMimeType(mimeType)
	switch {
	case model.IsImage(mt):
		return "", ErrNoText
	case mt == model.MimeHTML:
		return htmlText(data)
	case mt == model.MimeXLSX:
		return xlsxText(data)
	case mt == model.MimePDF:
		text, err := e.parser.ExtractText(ctx, bytes.NewReader(data), fileName, mt)
		if err == nil {
			return text, nil
		}
		log.Warnf("[Extract] pdf extraction failed for %s: %v", fileName, err)
		if bytes.HasPrefix(data, []byte("%PDF")) {
			return PDFPlaceholder, nil
		}
		return "", ErrInvalidPDF
	case mt == model.MimeDOCX:
		text, err := e.parser.ExtractText(ctx, bytes.NewReader(data), fileName, mt)
		if err != nil {
			return "", fmt.Errorf("extract docx: %w", err)
		}
		return text, nil
	default:
		// text/plain, text/markdown and anything unknown is read as UTF-8
		return decodeUTF8(data), nil
	}
}

func decodeUTF8(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("title, h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(parts, "\n"), nil
}

func xlsxText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		sb.WriteString("# ")
		sb.WriteString(sheet)
		sb.WriteByte('\n')
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
