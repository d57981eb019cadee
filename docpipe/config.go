package docpipe

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config configures the document pipeline.
type Config struct {
	// MaxFileSize is the maximum file size to process (default: 100 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Workers bounds the number of concurrent extractions (default: NumCPU).
	Workers int `json:"workers" yaml:"workers"`

	// GenericCommand is the external converter tried before the dedicated
	// engines for spreadsheets, word-processor documents and PDFs.
	// The file path is appended to GenericArgs.
	GenericCommand string        `json:"generic_command" yaml:"generic_command"`
	GenericArgs    []string      `json:"generic_args" yaml:"generic_args"`
	GenericTimeout time.Duration `json:"generic_timeout" yaml:"generic_timeout"`

	// OCRCommand is the tesseract binary used for image recognition.
	OCRCommand  string        `json:"ocr_command" yaml:"ocr_command"`
	OCRLanguage string        `json:"ocr_language" yaml:"ocr_language"`
	OCRTimeout  time.Duration `json:"ocr_timeout" yaml:"ocr_timeout"`

	// MaxImagePixels caps width*height of images handed to OCR, checked from
	// the header before any pixel is decoded (default: 100 million).
	MaxImagePixels int64 `json:"max_image_pixels" yaml:"max_image_pixels"`

	// DisableGeneric and DisableOCR turn capabilities off even when the
	// binaries are installed.
	DisableGeneric bool `json:"disable_generic" yaml:"disable_generic"`
	DisableOCR     bool `json:"disable_ocr" yaml:"disable_ocr"`

	// Root confines paths received through MCP tools to one directory tree.
	// Empty means no restriction.
	Root string `json:"root" yaml:"root"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.GenericCommand == "" {
		c.GenericCommand = "markitdown"
	}
	if c.GenericTimeout <= 0 {
		c.GenericTimeout = 60 * time.Second
	}
	if c.OCRCommand == "" {
		c.OCRCommand = "tesseract"
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = "eng"
	}
	if c.OCRTimeout <= 0 {
		c.OCRTimeout = 2 * time.Minute
	}
	if c.MaxImagePixels <= 0 {
		c.MaxImagePixels = 100_000_000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate rejects values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be >= 0")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if c.MaxImagePixels < 0 {
		return fmt.Errorf("max_image_pixels must be >= 0")
	}
	if c.GenericTimeout < 0 || c.OCRTimeout < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	return nil
}

// LoadConfig reads a YAML config file. Unset fields keep their zero value
// and are filled by New.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}
