// Package docpipe converts document files into one canonical text form.
//
// Supported categories:
//   - spreadsheet   : .xlsx (excelize), .xls (BIFF via extrame/xls)
//   - wordprocessor : .docx (word/document.xml), .odt (content.xml); .doc is rejected
//   - pdf           : pdfcpu content streams, ledongthuc/pdf for pages pdfcpu leaves empty
//   - image         : tesseract OCR, only when the ocr capability is present
//   - plaintext     : .md, .markdown, .txt (UTF-8, ISO-8859-1 fallback)
//
// When the generic-convert capability is present, spreadsheets, word-processor
// documents and PDFs are first handed to the generic converter (markitdown by
// default); any failure there falls back to the dedicated engine.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	res, err := pipe.Process(ctx, "/path/to/report.xlsx")
//	fmt.Println(res.FileCategory, res.Metadata["processor"], len(res.Content))
package docpipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hazyhaar/doctext/idgen"
	"github.com/hazyhaar/doctext/kit"
	"github.com/hazyhaar/doctext/observability"
)

// EventSink records one business event per processed file.
// *observability.EventLogger implements it.
type EventSink interface {
	LogEvent(ctx context.Context, event observability.BusinessEvent)
}

// Pipeline is the extraction dispatcher. It is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	logger     *slog.Logger
	caps       Capabilities
	capsSet    bool
	generic    GenericConverter
	recognizer Recognizer
	events     EventSink
	newID      idgen.Generator
	pool       *pool
	chains     map[Category][]step
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCapabilities replaces environment detection with an explicit set.
func WithCapabilities(c Capabilities) Option {
	return func(p *Pipeline) {
		p.caps = c
		p.capsSet = true
	}
}

// WithGenericConverter sets the converter used when the generic-convert
// capability is present.
func WithGenericConverter(g GenericConverter) Option {
	return func(p *Pipeline) { p.generic = g }
}

// WithRecognizer sets the OCR backend used for images.
func WithRecognizer(r Recognizer) Option {
	return func(p *Pipeline) { p.recognizer = r }
}

// WithEvents records a business event for every processed file.
func WithEvents(sink EventSink) Option {
	return func(p *Pipeline) { p.events = sink }
}

// WithIDGenerator sets the generator for per-call request IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(p *Pipeline) { p.newID = gen }
}

// New creates a Pipeline. Capabilities are detected here, once, unless
// WithCapabilities is given.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.defaults()
	p := &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
		newID:  idgen.Prefixed("conv_", idgen.Default),
	}
	for _, o := range opts {
		o(p)
	}
	if !p.capsSet {
		p.caps = DetectCapabilities(cfg)
	}
	if p.generic == nil {
		p.generic = &CommandConverter{
			Command: cfg.GenericCommand,
			Args:    cfg.GenericArgs,
			Timeout: cfg.GenericTimeout,
		}
	}
	if p.recognizer == nil {
		p.recognizer = &TesseractRecognizer{
			Command:  cfg.OCRCommand,
			Language: cfg.OCRLanguage,
		}
	}
	p.pool = newPool(cfg.Workers)
	p.chains = p.buildChains()

	p.logger.Debug("docpipe ready", "capabilities", p.caps.List(), "workers", cfg.Workers)
	return p
}

// Capabilities returns the capability set resolved at construction.
func (p *Pipeline) Capabilities() Capabilities { return p.caps }

// Process converts the file at path into canonical text.
//
// Errors: ErrNotFound, ErrUnsupportedFormat, ErrFileTooLarge, or an
// *ExtractionError (errors.Is ErrExtractionFailed) when the category's
// chain is exhausted. Failures inside one sheet or page never surface here;
// they appear as inline markers in Result.Content.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	reqID := kit.GetRequestID(ctx)
	if reqID == "" {
		reqID = p.newID()
		ctx = kit.WithRequestID(ctx, reqID)
	}
	log := p.logger.With("request_id", reqID, "path", path)
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	cat, ok := Classify(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if !p.SupportsCategory(cat) {
		return nil, fmt.Errorf("%w: %s files need the %s capability", ErrUnsupportedFormat, cat, CapOCR)
	}
	if info.Size() > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), p.cfg.MaxFileSize)
	}

	log.Debug("processing document", "category", cat, "size", info.Size())

	chain := p.chains[cat]
	var fallbackFrom string
	for i, s := range chain {
		ext, err := p.runStep(ctx, s, path)
		if err != nil && ctx.Err() != nil {
			// The caller gave up; do not fall back.
			return nil, fmt.Errorf("process %s: %w", path, ctx.Err())
		}
		if err != nil {
			if s.recoverable && i < len(chain)-1 {
				log.Warn("engine failed, falling back",
					"engine", s.engine.Name(), "next", chain[i+1].engine.Name(),
					"category", cat, "error", err)
				fallbackFrom = s.engine.Name()
				continue
			}
			xerr := &ExtractionError{Path: path, Category: cat, Engine: s.engine.Name(), Cause: err}
			log.Error("extraction failed", "engine", s.engine.Name(), "category", cat, "error", err)
			p.emit(ctx, path, cat, s.engine.Name(), time.Since(start), xerr)
			return nil, xerr
		}

		res := canonicalize(ext, cat, path, info.Size())
		if mt, err := mimetype.DetectFile(path); err == nil {
			res.Metadata["mimeType"] = mt.String()
		}
		if fallbackFrom != "" {
			res.Metadata["fallbackFrom"] = fallbackFrom
		}
		log.Info("document processed",
			"category", cat, "processor", ext.Processor,
			"chars", len(res.Content), "duration_ms", time.Since(start).Milliseconds())
		p.emit(ctx, path, cat, ext.Processor, time.Since(start), nil)
		return res, nil
	}

	// Every chain ends with a terminal step, so this is unreachable unless
	// a category has no chain at all.
	return nil, &ExtractionError{Path: path, Category: cat, Engine: "none", Cause: errors.New("no engine configured")}
}

func (p *Pipeline) emit(ctx context.Context, path string, cat Category, processor string, d time.Duration, err error) {
	if p.events == nil {
		return
	}
	details := map[string]any{
		"processor":   processor,
		"transport":   kit.GetTransport(ctx),
		"duration_ms": d.Milliseconds(),
	}
	ev := observability.BusinessEvent{
		EventType:   "document_converted",
		ServiceName: "doctext",
		EntityType:  string(cat),
		EntityID:    path,
		RequestID:   kit.GetRequestID(ctx),
		Action:      "process",
		Success:     err == nil,
	}
	if err != nil {
		ev.EventType = "document_failed"
		details["error"] = err.Error()
	}
	if b, mErr := json.Marshal(details); mErr == nil {
		ev.Details = string(b)
	}
	p.events.LogEvent(ctx, ev)
}
