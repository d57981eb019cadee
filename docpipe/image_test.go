package docpipe

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"testing"
)

// stubRecognizer returns canned OCR output and records the image it saw.
type stubRecognizer struct {
	text string
	err  error

	mu   sync.Mutex
	seen image.Image
}

func (s *stubRecognizer) Recognize(_ context.Context, img image.Image) (string, error) {
	s.mu.Lock()
	s.seen = img
	s.mu.Unlock()
	return s.text, s.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func ocrPipeline(rec Recognizer) *Pipeline {
	return newTestPipeline(WithCapabilities(NewCapabilities(CapOCR)), WithRecognizer(rec))
}

func TestProcess_Image(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scan.png", pngBytes(t, 6, 4))
	rec := &stubRecognizer{text: "  Invoice 42 \n\n   \nTotal: 10 EUR\n\n"}

	res, err := ocrPipeline(rec).Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Content != "Invoice 42\nTotal: 10 EUR" {
		t.Fatalf("content = %q", res.Content)
	}
	if res.Processor() != "tesseract" || res.FileCategory != CategoryImage {
		t.Fatalf("processor = %q, category = %q", res.Processor(), res.FileCategory)
	}
	if res.Metadata["imageFormat"] != "png" || res.Metadata["width"] != 6 || res.Metadata["height"] != 4 {
		t.Fatalf("metadata = %v", res.Metadata)
	}

	rgba, ok := rec.seen.(*image.RGBA)
	if !ok {
		t.Fatalf("recognizer got %T, want *image.RGBA", rec.seen)
	}
	if !rgba.Opaque() {
		t.Fatal("recognizer image is not opaque")
	}
}

func TestProcess_ImageNoText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "blank.png", pngBytes(t, 2, 2))
	res, err := ocrPipeline(&stubRecognizer{text: " \n \n"}).Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Content != "*(No text extracted from image)*" {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestProcess_ImageOCRFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scan.png", pngBytes(t, 2, 2))
	res, err := ocrPipeline(&stubRecognizer{err: errors.New("engine crashed")}).Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v (OCR failures must not fail the call)", err)
	}
	if res.Content != "*(Error processing image: engine crashed)*" {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestProcess_ImageUndecodable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fake.jpg", []byte("definitely not a jpeg"))
	rec := &stubRecognizer{text: "unused"}
	res, err := ocrPipeline(rec).Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.HasPrefix(res.Content, "*(Error processing image: decode image: ") {
		t.Fatalf("content = %q", res.Content)
	}
	if rec.seen != nil {
		t.Fatal("recognizer called for an undecodable file")
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGB
// pixels, with no image data behind it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 4+13)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], w)
	binary.BigEndian.PutUint32(ihdr[8:], h)
	ihdr[12] = 8 // bit depth
	ihdr[13] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestProcess_ImageDimensionsOverCap(t *testing.T) {
	path := writeFile(t, t.TempDir(), "huge.png", pngHeader(65535, 65535))
	rec := &stubRecognizer{text: "unused"}

	res, err := ocrPipeline(rec).Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "*(Error processing image: image too large: 65535x65535 exceeds 100000000 pixels)*"
	if res.Content != want {
		t.Fatalf("content = %q, want %q", res.Content, want)
	}
	if res.Metadata["width"] != 65535 || res.Metadata["height"] != 65535 {
		t.Fatalf("metadata = %v", res.Metadata)
	}
	if rec.seen != nil {
		t.Fatal("recognizer called for an oversized image")
	}
}

func TestImageEngine_MaxPixels(t *testing.T) {
	path := writeFile(t, t.TempDir(), "small.png", pngBytes(t, 8, 8))
	rec := &stubRecognizer{text: "fits"}
	e := &imageEngine{recognizer: rec, maxPixels: 64, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	out, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if out.Units[0].Text != "fits" {
		t.Fatalf("8x8 at a 64 pixel cap: %q", out.Units[0].Text)
	}

	e.maxPixels = 63
	out, err = e.Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Units[0].Text, "image too large: 8x8 exceeds 63 pixels") {
		t.Fatalf("8x8 at a 63 pixel cap: %q", out.Units[0].Text)
	}
}

func TestToRGB_TransparentOverWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.Set(0, 0, color.NRGBA{A: 0})
	got := toRGB(src).RGBAAt(0, 0)
	if got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("pixel = %v, want white", got)
	}
}

func TestToRGB_OpaquePassthrough(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	if toRGB(src) != src {
		t.Fatal("opaque RGBA image was copied")
	}
}

func TestToRGB_Gray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 1, 1))
	src.SetGray(0, 0, color.Gray{Y: 128})
	got := toRGB(src).RGBAAt(0, 0)
	if got.R != 128 || got.G != 128 || got.B != 128 || got.A != 255 {
		t.Fatalf("pixel = %v", got)
	}
}

func TestOCRLines(t *testing.T) {
	if got := ocrLines("\n a \n\n\tb\t\n \n"); got != "a\nb" {
		t.Fatalf("ocrLines = %q", got)
	}
}

func TestTesseractRecognizer(t *testing.T) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed")
	}
	r := &TesseractRecognizer{Command: "tesseract", Language: "eng"}
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	if _, err := r.Recognize(context.Background(), toRGB(img)); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
}

func TestTesseractRecognizer_MissingBinary(t *testing.T) {
	r := &TesseractRecognizer{Command: "doctext-no-such-tesseract"}
	_, err := r.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestImageEngine_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	e := &imageEngine{
		recognizer: &stubRecognizer{err: errors.New("x")},
		logger:     slog.New(slog.NewTextHandler(&buf, nil)),
	}
	path := writeFile(t, t.TempDir(), "a.png", pngBytes(t, 1, 1))
	if _, err := e.Extract(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "ocr failed") {
		t.Fatalf("log = %q", buf.String())
	}
}
