package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Recognizer turns an RGB image into text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// TesseractRecognizer runs the tesseract CLI, feeding the image as PNG on
// stdin and reading text from stdout.
type TesseractRecognizer struct {
	Command  string
	Language string
}

// Recognize implements Recognizer.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	args := []string{"stdin", "stdout"}
	if t.Language != "" {
		args = append(args, "-l", t.Language)
	}
	cmd := exec.CommandContext(ctx, t.Command, args...)
	cmd.Stdin = &buf
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", t.Command, err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

type imageEngine struct {
	recognizer Recognizer
	timeout    time.Duration
	maxPixels  int64
	logger     *slog.Logger
}

func (e *imageEngine) Name() string { return "tesseract" }

// Extract never fails: decode and recognition errors become a diagnostic
// unit, and an image without text becomes a placeholder.
func (e *imageEngine) Extract(ctx context.Context, path string) (*Extraction, error) {
	extra := map[string]any{}
	text, err := e.recognize(ctx, path, extra)
	if err != nil {
		e.logger.Error("image: ocr failed", "path", path, "error", err)
		text = marker("Error processing image: " + err.Error())
	} else if text == "" {
		text = marker("No text extracted from image")
	}
	return &Extraction{
		Processor: "tesseract",
		Units:     []Unit{{Text: text, Kind: "ocr"}},
		Extra:     extra,
	}, nil
}

func (e *imageEngine) recognize(ctx context.Context, path string, extra map[string]any) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Dimensions come from the header; no pixel buffer exists yet.
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	extra["imageFormat"] = format
	extra["width"] = cfg.Width
	extra["height"] = cfg.Height
	if e.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > e.maxPixels {
		return "", fmt.Errorf("image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, e.maxPixels)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	raw, err := e.recognizer.Recognize(ctx, toRGB(img))
	if err != nil {
		return "", err
	}
	return ocrLines(raw), nil
}

// toRGB returns img as an opaque RGBA image. Transparent pixels are
// composited over white.
func toRGB(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Opaque() {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// ocrLines trims every line and drops blank ones.
func ocrLines(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
