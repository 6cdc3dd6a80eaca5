package analysis

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/photo-check/internal/imagemeta"
	"github.com/example/photo-check/internal/logging"
)

const (
	noSubjectsInsight = "No clear subjects were identified in this image."
	fallbackInsight   = "Could not generate insights for this image."

	highResolutionPixels = 12_000_000
	goodResolutionPixels = 3_000_000
)

var smartphoneMarkers = []string{"iPhone", "Pixel"}

// describe is swapped in tests to exercise the fallback path.
var describe = describeImage

// Insights returns human-readable sentences about preds and d. It never
// fails: an internal fault yields a single fallback sentence.
func Insights(logger *zap.Logger, preds []Prediction, d *imagemeta.Descriptor) []string {
	var out []string
	err := logging.Guard("analysis.insights", func() error {
		out = describe(preds, d)
		return nil
	})
	if err != nil {
		logger.Error("insight generation failed", zap.Error(err))
		return []string{fallbackInsight}
	}
	return out
}

func describeImage(preds []Prediction, d *imagemeta.Descriptor) []string {
	if len(preds) == 0 {
		return []string{noSubjectsInsight}
	}

	top := preds[0]
	var out []string
	switch {
	case top.Score > 0.7:
		out = append(out, fmt.Sprintf("This image primarily shows %s (%s).", top.Label, top.Percentage))
	case top.Score > 0.5:
		out = append(out, fmt.Sprintf("This image likely contains %s (%s).", top.Label, top.Percentage))
	default:
		out = append(out, fmt.Sprintf("This image might contain %s, but I'm not very confident (%s).", top.Label, top.Percentage))
	}

	var secondary []string
	for i := 1; i < len(preds) && i < 4; i++ {
		if preds[i].Score > 0.3 {
			secondary = append(secondary, preds[i].Label)
		}
	}
	if len(secondary) > 0 {
		out = append(out, fmt.Sprintf("Also visible: %s.", strings.Join(secondary, ", ")))
	}

	if d == nil {
		return out
	}

	if d.Width > 0 && d.Height > 0 {
		switch pixels := d.Width * d.Height; {
		case pixels > highResolutionPixels:
			out = append(out, "This is a high-resolution image with excellent detail.")
		case pixels > goodResolutionPixels:
			out = append(out, "This image has good resolution suitable for standard viewing.")
		default:
			out = append(out, "This image has relatively low resolution.")
		}
	}

	if d.ColorStats != nil {
		switch d.BrightnessCategory {
		case imagemeta.BrightnessDark:
			out = append(out, "This is a predominantly dark image.")
		case imagemeta.BrightnessBright:
			out = append(out, "This is a bright, well-lit image.")
		}
	}

	if c := d.CaptureInfo; c != nil {
		if c.Camera != "" && c.Camera != "Unknown Unknown" {
			if isSmartphone(c.Camera) {
				out = append(out, fmt.Sprintf("This photo was taken with a %s smartphone.", c.Camera))
			} else {
				out = append(out, fmt.Sprintf("This photo was taken with a %s camera.", c.Camera))
			}
		}

		var settings []string
		if c.ExposureFormatted != "" {
			settings = append(settings, c.ExposureFormatted+" shutter speed")
		}
		if c.Aperture != "" {
			settings = append(settings, c.Aperture)
		}
		if c.ISO != "" {
			settings = append(settings, "ISO "+c.ISO)
		}
		if len(settings) > 0 {
			out = append(out, fmt.Sprintf("Camera settings: %s.", strings.Join(settings, ", ")))
		}

		if c.HasLocation {
			out = append(out, "This image contains geographic location data.")
		}
	}
	return out
}

func isSmartphone(camera string) bool {
	for _, marker := range smartphoneMarkers {
		if strings.Contains(camera, marker) {
			return true
		}
	}
	return false
}
