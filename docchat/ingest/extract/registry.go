// Package extract turns uploaded file bytes into plain text, one extractor per document type.
package extract

import (
	"context"
	"mime"
	"path/filepath"
	"strings"
	"sync"
)

// DocumentType is the canonical tag an extractor is registered under.
type DocumentType string

const (
	TypeCSV         DocumentType = "csv"
	TypeSpreadsheet DocumentType = "spreadsheet"
	TypePDF         DocumentType = "pdf"
	TypeText        DocumentType = "text"
	TypeImage       DocumentType = "image"
)

// Extractor converts raw bytes of one document type into text. Implementations must not
// retain raw or mutate anything outside their own call.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, raw []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, raw []byte) (string, error) {
	return f(ctx, raw)
}

// Registry maps document types to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[DocumentType]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[DocumentType]Extractor)}
}

// NewDefaultRegistry registers every built-in format. ocr may be nil, in which case the
// engine compiled into this binary is used.
func NewDefaultRegistry(ocr OCREngine) *Registry {
	if ocr == nil {
		ocr = DefaultOCREngine()
	}
	r := NewRegistry()
	r.Register(TypeCSV, CSVExtractor{})
	r.Register(TypeSpreadsheet, SpreadsheetExtractor{})
	r.Register(TypePDF, PDFExtractor{})
	r.Register(TypeText, TextExtractor{})
	r.Register(TypeImage, ImageExtractor{Engine: ocr})
	return r
}

// Register installs or replaces the extractor for typ.
func (r *Registry) Register(typ DocumentType, ex Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[typ] = ex
}

// Types lists the registered document types.
func (r *Registry) Types() []DocumentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DocumentType, 0, len(r.extractors))
	for t := range r.extractors {
		out = append(out, t)
	}
	return out
}

// Resolve finds the extractor for a declared type. The declared type may be a MIME type,
// an extension or a file name. Unknown types yield ErrNotSupported.
func (r *Registry) Resolve(declared string) (Extractor, DocumentType, error) {
	typ, ok := Normalize(declared)
	if !ok {
		return nil, "", &Error{Kind: KindNotSupported, Err: unsupportedType(declared)}
	}
	r.mu.RLock()
	ex, ok := r.extractors[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, typ, newError(KindNotSupported, typ, unsupportedType(declared))
	}
	return ex, typ, nil
}

var mimeTypes = map[string]DocumentType{
	"text/csv":                    TypeCSV,
	"application/csv":             TypeCSV,
	"text/comma-separated-values": TypeCSV,
	"application/pdf":             TypePDF,
	"text/plain":                  TypeText,
	"text/markdown":               TypeText,
	"image/png":                   TypeImage,
	"image/jpeg":                  TypeImage,
	"image/jpg":                   TypeImage,

	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": TypeSpreadsheet,
	"application/vnd.ms-excel.sheet.macroenabled.12":                    TypeSpreadsheet,
}

var extensions = map[string]DocumentType{
	"csv":  TypeCSV,
	"xlsx": TypeSpreadsheet,
	"xlsm": TypeSpreadsheet,
	"pdf":  TypePDF,
	"txt":  TypeText,
	"text": TypeText,
	"md":   TypeText,
	"png":  TypeImage,
	"jpg":  TypeImage,
	"jpeg": TypeImage,
}

// Normalize maps a MIME type, extension or file name to a DocumentType.
func Normalize(declared string) (DocumentType, bool) {
	d := strings.ToLower(strings.TrimSpace(declared))
	if d == "" {
		return "", false
	}
	if strings.Contains(d, "/") {
		mt := d
		if parsed, _, err := mime.ParseMediaType(d); err == nil {
			mt = parsed
		}
		if t, ok := mimeTypes[mt]; ok {
			return t, true
		}
	}
	if t := DocumentType(d); isCanonical(t) {
		return t, true
	}
	if ext := strings.TrimPrefix(filepath.Ext(d), "."); ext != "" {
		d = ext
	}
	t, ok := extensions[strings.TrimPrefix(d, ".")]
	return t, ok
}

func isCanonical(t DocumentType) bool {
	switch t {
	case TypeCSV, TypeSpreadsheet, TypePDF, TypeText, TypeImage:
		return true
	}
	return false
}

type unsupportedType string

func (u unsupportedType) Error() string {
	if u == "" {
		return "no declared type"
	}
	return "unsupported type " + string(u)
}
