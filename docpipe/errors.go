package docpipe

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the source file does not exist.
	ErrNotFound = errors.New("docpipe: file not found")

	// ErrUnsupportedFormat is returned for unknown extensions and for
	// categories whose capability is absent.
	ErrUnsupportedFormat = errors.New("docpipe: unsupported format")

	// ErrFileTooLarge is returned when the file exceeds Config.MaxFileSize.
	ErrFileTooLarge = errors.New("docpipe: file too large")

	// ErrExtractionFailed matches every *ExtractionError.
	ErrExtractionFailed = errors.New("docpipe: extraction failed")

	// ErrLegacyFormat is returned by the word-processor engine for the
	// binary .doc format.
	ErrLegacyFormat = errors.New("legacy binary word format is not supported")
)

// ExtractionError is returned when every engine in a category's chain failed.
type ExtractionError struct {
	Path     string
	Category Category
	Engine   string
	Cause    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("docpipe: extract %s (%s, engine %s): %v", e.Path, e.Category, e.Engine, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrExtractionFailed) true for any ExtractionError.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtractionFailed }
