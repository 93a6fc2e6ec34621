// CLAUDE:SUMMARY Fragment producers: JSONL/JSON files, saved listing and detail HTML, and rendered pages via headless Chrome.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hazyhaar/surfacekeeper/extract"
	"github.com/hazyhaar/surfacekeeper/record"
)

// EmitFunc receives one fragment. A non-nil error stops the producer.
type EmitFunc func(record.Record) error

// Producer yields record fragments. Producers run one at a time; the keeper
// flushes after each one finishes.
type Producer interface {
	Name() string
	Produce(ctx context.Context, emit EmitFunc) error
}

// maxLine bounds one JSONL fragment.
const maxLine = 4 << 20

// JSONLProducer reads one JSON object per line. Blank lines are skipped;
// lines that are not JSON objects are logged and skipped.
type JSONLProducer struct {
	name   string
	open   func() (io.ReadCloser, error)
	logger *slog.Logger
}

// NewJSONLFile returns a JSONLProducer over a file. The path "-" reads stdin.
func NewJSONLFile(name, path string, logger *slog.Logger) *JSONLProducer {
	return &JSONLProducer{name: name, open: fileOpener(path), logger: orDefault(logger)}
}

// NewJSONLReader returns a JSONLProducer over r.
func NewJSONLReader(name string, r io.Reader, logger *slog.Logger) *JSONLProducer {
	return &JSONLProducer{
		name:   name,
		open:   func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		logger: orDefault(logger),
	}
}

func (p *JSONLProducer) Name() string { return p.name }

func (p *JSONLProducer) Produce(ctx context.Context, emit EmitFunc) error {
	rc, err := p.open()
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", p.name, err)
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var frag map[string]any
		if err := json.Unmarshal(raw, &frag); err != nil || frag == nil {
			p.logger.Warn("catalog: bad fragment line", "producer", p.name, "line", line, "error", err)
			continue
		}
		if err := emit(record.Record(frag)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("catalog: %s: read: %w", p.name, err)
	}
	return nil
}

// JSONProducer reads a file holding a JSON array of fragments.
type JSONProducer struct {
	name   string
	path   string
	logger *slog.Logger
}

func (p *JSONProducer) Name() string { return p.name }

func (p *JSONProducer) Produce(ctx context.Context, emit EmitFunc) error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", p.name, err)
	}
	var frags []map[string]any
	if err := json.Unmarshal(data, &frags); err != nil {
		return fmt.Errorf("catalog: %s: decode: %w", p.name, err)
	}
	for i, f := range frags {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f == nil {
			p.logger.Warn("catalog: null fragment", "producer", p.name, "index", i)
			continue
		}
		if err := emit(record.Record(f)); err != nil {
			return err
		}
	}
	return nil
}

// PageFetcher returns the HTML of a page. *render.Renderer satisfies it.
type PageFetcher interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// PageProducer parses one listing or detail page, read from a file or
// fetched through a PageFetcher.
type PageProducer struct {
	name   string
	src    SourceConfig
	detail bool
	fetch  func(ctx context.Context) ([]byte, error)
	parser *extract.DetailParser
	logger *slog.Logger
}

func (p *PageProducer) Name() string { return p.name }

func (p *PageProducer) Produce(ctx context.Context, emit EmitFunc) error {
	body, err := p.fetch(ctx)
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", p.name, err)
	}

	if p.detail {
		frag, err := p.parser.Parse(bytes.NewReader(body), extract.DetailOptions{URL: p.src.URL})
		if err != nil {
			return fmt.Errorf("catalog: %s: %w", p.name, err)
		}
		return emit(frag)
	}

	frags, err := extract.ParseListing(bytes.NewReader(body), extract.ListingOptions{
		BaseURL:      p.src.BaseURL,
		TileSelector: p.src.TileSelector,
		NameSelector: p.src.NameSelector,
		Facet:        p.src.Facet,
	})
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", p.name, err)
	}
	if len(frags) == 0 {
		p.logger.Warn("catalog: listing has no tiles", "producer", p.name, "selector", p.src.TileSelector)
	}
	for _, f := range frags {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(f); err != nil {
			return err
		}
	}
	return nil
}

// NewProducer builds the producer for one configured source. fetcher is only
// used by render sources and may be nil otherwise.
func NewProducer(src SourceConfig, fetcher PageFetcher, parser *extract.DetailParser, logger *slog.Logger) (Producer, error) {
	logger = orDefault(logger)
	if parser == nil {
		parser = extract.NewDetailParser(logger)
	}
	switch src.Kind {
	case KindJSONL:
		return NewJSONLFile(src.Name, src.Path, logger), nil
	case KindJSON:
		return &JSONProducer{name: src.Name, path: src.Path, logger: logger}, nil
	case KindHTML, KindDetail:
		path := src.Path
		return &PageProducer{
			name:   src.Name,
			src:    src,
			detail: src.Kind == KindDetail,
			fetch:  func(context.Context) ([]byte, error) { return os.ReadFile(path) },
			parser: parser,
			logger: logger,
		}, nil
	case KindRender:
		if fetcher == nil {
			return nil, fmt.Errorf("%w: source %s: no renderer", ErrInvalidConfig, src.Name)
		}
		url := src.URL
		return &PageProducer{
			name:   src.Name,
			src:    src,
			detail: strings.EqualFold(src.Page, "detail"),
			fetch:  func(ctx context.Context) ([]byte, error) { return fetcher.Render(ctx, url) },
			parser: parser,
			logger: logger,
		}, nil
	}
	return nil, fmt.Errorf("%w: source %s: unknown kind %q", ErrInvalidConfig, src.Name, src.Kind)
}

func fileOpener(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		if path == "-" {
			return io.NopCloser(os.Stdin), nil
		}
		return os.Open(path)
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
