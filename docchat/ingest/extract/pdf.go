package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor concatenates the plain text of every page in page order.
type PDFExtractor struct{}

func (PDFExtractor) Extract(ctx context.Context, raw []byte) (text string, err error) {
	// the pdf reader panics on some corrupt cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", newError(KindMalformedInput, TypePDF, fmt.Errorf("corrupt document: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", newError(KindMalformedInput, TypePDF, fmt.Errorf("open document: %w", err))
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", newError(KindMalformedInput, TypePDF, fmt.Errorf("page %d: %w", i, err))
		}
		if b.Len() > 0 && content != "" {
			b.WriteString("\n")
		}
		b.WriteString(content)
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", newError(KindNoExtractableContent, TypePDF, errors.New("no text on any page"))
	}
	return b.String(), nil
}
