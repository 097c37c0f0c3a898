// Package ingest runs uploaded documents through the extractor registry and appends
// whatever text they yield to a conversation as document context.
package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/zeebo/blake3"

	"github.com/ZanzyTHEbar/docchat/docchat/conversation"
	ports "github.com/ZanzyTHEbar/docchat/docchat/harness/ports"
	"github.com/ZanzyTHEbar/docchat/docchat/ingest/extract"
)

// Document is one uploaded file, held fully in memory.
type Document struct {
	Name         string
	DeclaredType string // MIME type, extension or filename; may be empty
	Raw          []byte
}

// OutcomeKind says what an upload did to the conversation.
type OutcomeKind string

const (
	Appended OutcomeKind = "appended" // a document context turn was added
	Skipped  OutcomeKind = "skipped"  // extraction succeeded but produced no text
	Warned   OutcomeKind = "warned"   // extraction failed; the buffer is untouched
)

// Outcome reports the result of ingesting one document.
type Outcome struct {
	Document string               `json:"document"`
	Type     extract.DocumentType `json:"type,omitempty"`
	Kind     OutcomeKind          `json:"outcome"`
	Text     string               `json:"-"`
	Reason   string               `json:"reason,omitempty"`
	Cached   bool                 `json:"cached,omitempty"`
	Err      error                `json:"-"`
}

// Config bounds what the coordinator accepts.
type Config struct {
	MaxUploadBytes  int64 // <= 0 disables the check
	CacheTTLSeconds int
	Concurrency     int // extraction goroutines per batch
}

// Coordinator owns the resolve, extract, append sequence for uploads.
type Coordinator struct {
	registry *extract.Registry
	cache    ports.Cache
	cfg      Config
	logger   zerolog.Logger
}

// NewCoordinator creates a coordinator. cache may be nil.
func NewCoordinator(registry *extract.Registry, cache ports.Cache, cfg Config, logger zerolog.Logger) *Coordinator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.CacheTTLSeconds <= 0 {
		cfg.CacheTTLSeconds = 3600
	}
	return &Coordinator{registry: registry, cache: cache, cfg: cfg, logger: logger}
}

// extraction is the pure half of an ingest, safe to run concurrently.
type extraction struct {
	typ    extract.DocumentType
	text   string
	err    error
	cached bool
}

// Ingest extracts doc and, if it yields text, appends it to buf. It never panics and
// never mutates buf on failure.
func (c *Coordinator) Ingest(ctx context.Context, buf *conversation.Buffer, doc Document) Outcome {
	return c.commit(buf, doc, c.extract(ctx, doc))
}

// IngestBatch extracts docs concurrently, then appends in input order. The returned
// outcomes line up with docs.
func (c *Coordinator) IngestBatch(ctx context.Context, buf *conversation.Buffer, docs []Document) []Outcome {
	results := make([]extraction, len(docs))

	p := pool.New().WithMaxGoroutines(c.cfg.Concurrency)
	for i, doc := range docs {
		i, doc := i, doc
		p.Go(func() {
			results[i] = c.extract(ctx, doc)
		})
	}
	p.Wait()

	outcomes := make([]Outcome, len(docs))
	for i, doc := range docs {
		outcomes[i] = c.commit(buf, doc, results[i])
	}
	return outcomes
}

func (c *Coordinator) extract(ctx context.Context, doc Document) extraction {
	declared := extract.DeclaredType(doc.DeclaredType, doc.Name, doc.Raw)

	if c.cfg.MaxUploadBytes > 0 && int64(len(doc.Raw)) > c.cfg.MaxUploadBytes {
		typ, _ := extract.Normalize(declared)
		return extraction{typ: typ, err: &extract.Error{
			Kind: extract.KindInputTooLarge,
			Type: typ,
			Err:  fmt.Errorf("%d bytes exceeds the %d byte limit", len(doc.Raw), c.cfg.MaxUploadBytes),
		}}
	}

	ex, typ, err := c.registry.Resolve(declared)
	if err != nil {
		return extraction{typ: typ, err: err}
	}
	if err := ctx.Err(); err != nil {
		return extraction{typ: typ, err: err}
	}

	key := cacheKey(typ, doc.Raw)
	if c.cache != nil {
		if text, ok := c.cache.Get(ctx, key); ok {
			return extraction{typ: typ, text: string(text), cached: true}
		}
	}

	text, err := safeExtract(ctx, ex, doc.Raw)
	if err != nil {
		return extraction{typ: typ, err: err}
	}

	if c.cache != nil && strings.TrimSpace(text) != "" {
		if err := c.cache.Set(ctx, key, []byte(text), c.cfg.CacheTTLSeconds); err != nil {
			c.logger.Debug().Err(err).Str("document", doc.Name).Msg("extraction cache set failed")
		}
	}
	return extraction{typ: typ, text: text}
}

func (c *Coordinator) commit(buf *conversation.Buffer, doc Document, res extraction) Outcome {
	out := Outcome{Document: doc.Name, Type: res.typ, Cached: res.cached}
	log := c.logger.With().Str("document", doc.Name).Str("type", string(res.typ)).Int("bytes", len(doc.Raw)).Logger()

	if res.err != nil {
		out.Kind = Warned
		out.Err = res.err
		out.Reason = res.err.Error()
		log.Warn().Err(res.err).Str("kind", string(extract.KindOf(res.err))).Msg("document not ingested")
		return out
	}

	text := strings.TrimSpace(res.text)
	if text == "" {
		out.Kind = Skipped
		out.Reason = "no text found in document"
		log.Info().Msg("document skipped, no text extracted")
		return out
	}

	framed := FrameDocument(doc.Name, text)
	if _, err := buf.AppendDocumentContext(framed); err != nil {
		out.Kind = Warned
		out.Err = err
		out.Reason = err.Error()
		log.Warn().Err(err).Msg("document context rejected by buffer")
		return out
	}

	out.Kind = Appended
	out.Text = framed
	log.Info().Int("chars", len(text)).Bool("cached", res.cached).Msg("document appended")
	return out
}

// FrameDocument labels extracted text with its source so several documents stay distinguishable.
func FrameDocument(name, text string) string {
	if strings.TrimSpace(name) == "" {
		name = "untitled"
	}
	return "[Document: " + name + "]\n" + text
}

// safeExtract turns an extractor panic into a malformed-input error.
func safeExtract(ctx context.Context, ex extract.Extractor, raw []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &extract.Error{
				Kind: extract.KindMalformedInput,
				Err:  fmt.Errorf("extractor panic: %v", r),
			}
		}
	}()
	text, err = ex.Extract(ctx, raw)
	if err != nil {
		text = ""
	}
	return text, err
}

// cacheKey identifies an extraction by document type and content.
func cacheKey(typ extract.DocumentType, raw []byte) string {
	h := blake3.New()
	h.Write([]byte(typ))
	h.Write([]byte{0})
	h.Write(raw)
	return "extract:" + hex.EncodeToString(h.Sum(nil))
}
