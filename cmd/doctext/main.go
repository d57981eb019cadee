// Command doctext converts document files into canonical text.
//
// Usage:
//
//	doctext report.xlsx notes.md scan.png       # print canonical text
//	doctext -json report.xlsx                   # one JSON result per line
//	doctext -config doctext.yaml -events-db events.db *.pdf
//	doctext -extensions                         # list accepted extensions
//	doctext -mcp -root /srv/docs                # serve MCP tools on stdio
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/doctext/dbopen"
	"github.com/hazyhaar/doctext/docpipe"
	"github.com/hazyhaar/doctext/observability"
)

const version = "0.1.0"

type options struct {
	configPath    string
	root          string
	workers       int
	noGeneric     bool
	noOCR         bool
	jsonOut       bool
	eventsDB      string
	retentionDays int
	busyTimeoutMS int
	mcpMode       bool
	extensions    bool
	files         []string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to doctext.yaml config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.IntVar(&o.workers, "workers", 0, "max concurrent extractions (default: NumCPU)")
	flag.BoolVar(&o.noGeneric, "no-generic", false, "never try the generic converter")
	flag.BoolVar(&o.noOCR, "no-ocr", false, "disable image OCR")
	flag.BoolVar(&o.jsonOut, "json", false, "print one JSON result per line")
	flag.StringVar(&o.eventsDB, "events-db", "", "SQLite database recording one event per file")
	flag.IntVar(&o.retentionDays, "events-retention", 0, "delete events older than N days on startup (0 keeps all)")
	flag.IntVar(&o.busyTimeoutMS, "events-busy-timeout", 5000, "milliseconds an event write waits on a locked database")
	flag.BoolVar(&o.mcpMode, "mcp", false, "serve MCP tools over stdio")
	flag.StringVar(&o.root, "root", "", "confine MCP tool paths to this directory")
	flag.BoolVar(&o.extensions, "extensions", false, "list supported extensions and exit")
	flag.Parse()
	o.files = flag.Args()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o, os.Stdout); err != nil {
		logger.Error("doctext: fatal", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, logger *slog.Logger, o options, stdout io.Writer) error {
	cfg, err := resolveConfig(o)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	var opts []docpipe.Option
	if o.eventsDB != "" {
		db, err := openEvents(ctx, o, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, docpipe.WithEvents(observability.NewEventLogger(db, observability.WithLogger(logger))))
	}

	pipe := docpipe.New(cfg, opts...)

	switch {
	case o.extensions:
		for _, ext := range pipe.SupportedExtensions() {
			fmt.Fprintln(stdout, ext)
		}
		return nil
	case o.mcpMode:
		srv := mcp.NewServer(&mcp.Implementation{Name: "doctext", Version: version}, nil)
		pipe.RegisterMCP(srv)
		logger.Info("doctext: serving mcp on stdio", "capabilities", pipe.Capabilities().List(), "root", cfg.Root)
		return srv.Run(ctx, &mcp.StdioTransport{})
	}

	if len(o.files) == 0 {
		return fmt.Errorf("usage: doctext [flags] <file>...")
	}
	failed, err := processAll(ctx, logger, pipe, o.files, o.jsonOut, stdout)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(o.files))
	}
	return nil
}

func resolveConfig(o options) (docpipe.Config, error) {
	var cfg docpipe.Config
	if o.configPath != "" {
		var err error
		if cfg, err = docpipe.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	if o.noGeneric {
		cfg.DisableGeneric = true
	}
	if o.noOCR {
		cfg.DisableOCR = true
	}
	if o.root != "" {
		cfg.Root = o.root
	}
	return cfg, nil
}

func openEvents(ctx context.Context, o options, logger *slog.Logger) (*sql.DB, error) {
	opts := []dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(observability.Schema)}
	if o.busyTimeoutMS > 0 {
		opts = append(opts, dbopen.WithBusyTimeout(o.busyTimeoutMS))
	}
	db, err := dbopen.Open(o.eventsDB, opts...)
	if err != nil {
		return nil, fmt.Errorf("events db: %w", err)
	}
	if n, err := observability.Cleanup(ctx, db, o.retentionDays); err != nil {
		logger.Warn("doctext: event cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info("doctext: old events deleted", "count", n)
	}
	return db, nil
}

// processAll converts every file concurrently. A failed file is logged and
// counted; it never stops the others. Output keeps argument order. The
// error is a failure to write output, which ends the run.
func processAll(ctx context.Context, logger *slog.Logger, pipe *docpipe.Pipeline, files []string, jsonOut bool, stdout io.Writer) (int, error) {
	results := make([]*docpipe.Result, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	for i, path := range files {
		g.Go(func() error {
			results[i], errs[i] = pipe.Process(ctx, path)
			return nil
		})
	}
	g.Wait()

	failed := 0
	enc := json.NewEncoder(stdout)
	for i, path := range files {
		if errs[i] != nil {
			logger.Error("doctext: file failed", "path", path, "error", errs[i])
			failed++
			continue
		}
		var err error
		if jsonOut {
			err = enc.Encode(jsonResult{Path: path, Result: results[i]})
		} else {
			err = writeText(stdout, path, results[i], len(files) > 1)
		}
		if err != nil {
			return failed, fmt.Errorf("write output for %s: %w", path, err)
		}
	}
	return failed, nil
}

type jsonResult struct {
	Path string `json:"path"`
	*docpipe.Result
}

func writeText(w io.Writer, path string, res *docpipe.Result, header bool) error {
	if header {
		if _, err := fmt.Fprintf(w, "==> %s (%s, %s) <==\n", path, res.FileCategory, res.Processor()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(res.Content, "\n"))
	return err
}
