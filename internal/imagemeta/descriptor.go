package imagemeta

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/example/photo-check/internal/logging"
)

const (
	shortHashLen = 16
	// DefaultMaxPixels matches the usual decompression-bomb ceiling of image
	// tooling (a quarter gigabyte of 24-bit pixels).
	DefaultMaxPixels = 89_478_485
)

var (
	// ErrEmptyImage is recorded when the caller hands over zero bytes.
	ErrEmptyImage = errors.New("empty image")
	// ErrTooManyPixels is recorded when the declared dimensions exceed the
	// builder's pixel ceiling. The image is never decoded in that case.
	ErrTooManyPixels = errors.New("image dimensions exceed pixel limit")
)

// Builder composes the descriptor for one upload. It holds no per-request
// state and is safe for concurrent use.
type Builder struct {
	logger    *zap.Logger
	now       func() time.Time
	maxPixels int64
}

// NewBuilder constructs a descriptor builder.
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger.Named("imagemeta"), now: time.Now, maxPixels: DefaultMaxPixels}
}

// Build never fails: a decode failure is recorded in Descriptor.Error and a
// failing sub-step (preview, capture, color) is recorded in Warnings while the
// remaining steps still run.
func (b *Builder) Build(raw []byte) *Descriptor {
	d := &Descriptor{AnalyzedAt: b.now().Format(time.RFC3339)}
	if len(raw) == 0 {
		d.Error = extractionError(ErrEmptyImage)
		return d
	}

	d.FileSizeBytes = len(raw)
	d.FileSize = fmt.Sprintf("%.2f KB", float64(len(raw))/1024)
	md5Sum := md5.Sum(raw)
	d.Hash = hex.EncodeToString(md5Sum[:])
	shaSum := sha256.Sum256(raw)
	d.SHA256 = hex.EncodeToString(shaSum[:])[:shortHashLen]

	img, name, err := b.decode(raw)
	if err != nil {
		b.logger.Warn("image decode failed", zap.Error(err), zap.Int("bytes", len(raw)))
		d.Error = extractionError(err)
		return d
	}

	bounds := img.Bounds()
	d.Format = formatFromName(name)
	d.Mode = pixelMode(img)
	d.Width = bounds.Dx()
	d.Height = bounds.Dy()
	if d.Height > 0 {
		d.AspectRatio = math.RoundToEven(float64(d.Width)/float64(d.Height)*100) / 100
	}

	b.step(d, "imagemeta.preview", func() error {
		uri, err := EncodePreview(img)
		if err != nil {
			return err
		}
		d.Thumbnail = uri
		return nil
	})

	if extract := captureExtractor(d.Format); extract != nil {
		b.step(d, "imagemeta.capture", func() error {
			info, err := extract(raw)
			if err != nil {
				return err
			}
			d.CaptureInfo = info
			return nil
		})
	}

	if d.Mode == "RGB" {
		b.step(d, "imagemeta.color", func() error {
			d.ColorStats = AnalyzeColor(img)
			return nil
		})
	}

	return d
}

// decode reads the header first and refuses images whose declared size is
// over the pixel ceiling, so a tiny file cannot force a huge allocation.
// Decoder panics are returned as errors.
func (b *Builder) decode(raw []byte) (img image.Image, name string, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > b.maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d is over %d pixels", ErrTooManyPixels, cfg.Width, cfg.Height, b.maxPixels)
	}

	err = logging.Guard("imagemeta.decode", func() error {
		var decodeErr error
		img, name, decodeErr = image.Decode(bytes.NewReader(raw))
		return decodeErr
	})
	if err != nil {
		return nil, "", err
	}
	return img, name, nil
}

func captureExtractor(format Format) func([]byte) (*CaptureInfo, error) {
	switch format {
	case FormatJPEG:
		return ExtractCapture
	case FormatWEBP:
		return ExtractWebPCapture
	default:
		return nil
	}
}

func (b *Builder) step(d *Descriptor, operation string, fn func() error) {
	if err := logging.Guard(operation, fn); err != nil {
		b.logger.Warn("metadata step failed", zap.String("operation", operation), zap.Error(err))
		d.Warnings = append(d.Warnings, err.Error())
	}
}

func extractionError(err error) string {
	return fmt.Sprintf("Could not extract metadata: %v", err)
}

func formatFromName(name string) Format {
	switch name {
	case "png":
		return FormatPNG
	case "jpeg":
		return FormatJPEG
	case "gif":
		return FormatGIF
	case "bmp":
		return FormatBMP
	case "webp":
		return FormatWEBP
	default:
		return FormatOther
	}
}

// pixelMode names the decoded pixel layout the way image tools usually do:
// RGB, RGBA, L (gray), P (palette), CMYK or A (alpha only).
func pixelMode(img image.Image) string {
	switch m := img.(type) {
	case *image.YCbCr:
		return "RGB"
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	case *image.Alpha, *image.Alpha16:
		return "A"
	case interface{ Opaque() bool }:
		if m.Opaque() {
			return "RGB"
		}
		return "RGBA"
	default:
		return "other"
	}
}
