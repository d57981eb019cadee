package docpipe

import (
	"context"
	"fmt"
)

// Engine converts one category of file into ordered units.
// The ctx passed to Extract carries request values but is never cancelled:
// an extraction that has started runs to completion.
type Engine interface {
	Name() string
	Extract(ctx context.Context, path string) (*Extraction, error)
}

// step is one strategy in a category chain. A recoverable step's failure
// advances to the next step; any other failure is terminal.
type step struct {
	engine      Engine
	recoverable bool
}

// buildChains declares the strategy order for every category. The generic
// converter only leads the chains of the structured binary formats.
func (p *Pipeline) buildChains() map[Category][]step {
	dedicated := map[Category]Engine{
		CategorySpreadsheet:   &spreadsheetEngine{logger: p.logger},
		CategoryWordProcessor: &wordEngine{},
		CategoryPDF:           &pdfEngine{logger: p.logger},
		CategoryImage:         &imageEngine{recognizer: p.recognizer, timeout: p.cfg.OCRTimeout, maxPixels: p.cfg.MaxImagePixels, logger: p.logger},
		CategoryPlainText:     &textEngine{maxSize: p.cfg.MaxFileSize},
	}

	chains := make(map[Category][]step, len(dedicated))
	for cat, eng := range dedicated {
		var chain []step
		if p.generic != nil && p.caps.Has(CapGenericConvert) && genericEligible(cat) {
			chain = append(chain, step{engine: &genericEngine{conv: p.generic}, recoverable: true})
		}
		chains[cat] = append(chain, step{engine: eng})
	}
	return chains
}

func genericEligible(c Category) bool {
	switch c {
	case CategorySpreadsheet, CategoryWordProcessor, CategoryPDF:
		return true
	}
	return false
}

// runStep executes s on a worker slot. Engine panics become errors so a
// malformed file never takes the process down.
func (p *Pipeline) runStep(ctx context.Context, s step, path string) (*Extraction, error) {
	detached := context.WithoutCancel(ctx)
	var (
		out    *Extraction
		engErr error
	)
	// out and engErr are only read once run reports completion.
	if err := p.pool.run(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				engErr = fmt.Errorf("engine %s panicked: %v", s.engine.Name(), r)
			}
		}()
		out, engErr = s.engine.Extract(detached, path)
	}); err != nil {
		return nil, err
	}
	if engErr != nil {
		return nil, engErr
	}
	if out == nil {
		return nil, fmt.Errorf("engine %s returned no output", s.engine.Name())
	}
	return out, nil
}
