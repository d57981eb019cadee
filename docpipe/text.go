package docpipe

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/hazyhaar/doctext/safeio"
)

type textEngine struct {
	maxSize int64
}

func (e *textEngine) Name() string { return "text_reader" }

// Extract returns the file content unchanged. Bytes that are not valid
// UTF-8 are decoded as ISO-8859-1, which accepts any byte sequence.
func (e *textEngine) Extract(_ context.Context, path string) (*Extraction, error) {
	data, err := safeio.ReadFile(path, e.maxSize)
	if err != nil {
		return nil, err
	}

	text, encoding, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		text = marker("Empty file")
	}

	return &Extraction{
		Processor: "text_reader",
		Units:     []Unit{{Text: text, Kind: "text"}},
		Extra:     map[string]any{"encoding": encoding},
	}, nil
}

func decodeText(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("decode latin-1: %w", err)
	}
	return string(decoded), "iso-8859-1", nil
}

// decodeRuneLatin1 decodes one rune, reading an invalid UTF-8 byte as its
// Latin-1 code point.
func decodeRuneLatin1(s string) (rune, int) {
	if s == "" {
		return utf8.RuneError, 0
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return rune(s[0]), 1
	}
	return r, size
}
