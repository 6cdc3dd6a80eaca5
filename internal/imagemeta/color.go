package imagemeta

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

const (
	sampleGrid          = 50
	dominantStride      = 10
	maxDominantColors   = 5
	minColorDistance    = 30.0
	darkPixelSum        = 30
	lightPixelSum       = 730
	contrastSpread      = 128.0
	darkUpperPercent    = 30
	mediumUpperPercent  = 70
	histogramBuckets    = 8
	histogramBucketSize = 256 / histogramBuckets
)

// AnalyzeColor computes color statistics over a 50x50 downsample of img.
// Callers only pass three-channel RGB images.
func AnalyzeColor(img image.Image) *ColorStats {
	pixels := samplePixels(img)
	if len(pixels) == 0 {
		return nil
	}

	var sumR, sumG, sumB int
	var hist Histogram
	for _, p := range pixels {
		sumR += int(p.R)
		sumG += int(p.G)
		sumB += int(p.B)
		hist.R[p.R/histogramBucketSize]++
		hist.G[p.G/histogramBucketSize]++
		hist.B[p.B/histogramBucketSize]++
	}
	n := len(pixels)
	avg := RGB{R: uint8(sumR / n), G: uint8(sumG / n), B: uint8(sumB / n)}

	brightness := BrightnessPercent(avg)
	return &ColorStats{
		AvgColor:           rgbString(avg),
		AvgColorHex:        hexString(avg),
		ColorHistogram:     hist,
		DominantColors:     toDominant(DominantColors(pixels)),
		Brightness:         brightness,
		BrightnessCategory: CategorizeBrightness(brightness),
		Contrast:           contrastPercent(pixels),
	}
}

// samplePixels downsamples img to the sample grid and returns the pixels in
// row-major order.
func samplePixels(img image.Image) []RGB {
	small := resize.Resize(sampleGrid, sampleGrid, img, resize.Bilinear)
	b := small.Bounds()
	pixels := make([]RGB, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(small.At(x, y)).(color.NRGBA)
			pixels = append(pixels, RGB{R: c.R, G: c.G, B: c.B})
		}
	}
	return pixels
}

// BrightnessPercent is the mean of the channel averages as a 0-100 value.
func BrightnessPercent(avg RGB) int {
	mean := float64(int(avg.R)+int(avg.G)+int(avg.B)) / 3
	return int(math.RoundToEven(mean / 255 * 100))
}

// CategorizeBrightness buckets a brightness percentage: below 30 is Dark,
// below 70 is Medium, anything else is Bright.
func CategorizeBrightness(percent int) BrightnessCategory {
	switch {
	case percent < darkUpperPercent:
		return BrightnessDark
	case percent < mediumUpperPercent:
		return BrightnessMedium
	default:
		return BrightnessBright
	}
}

// contrastPercent is the population standard deviation of every sampled
// channel value against a reference spread of 128, capped at 100.
func contrastPercent(pixels []RGB) int {
	count := float64(len(pixels) * 3)
	var sum float64
	for _, p := range pixels {
		sum += float64(p.R) + float64(p.G) + float64(p.B)
	}
	mean := sum / count

	var sq float64
	for _, p := range pixels {
		for _, v := range [3]uint8{p.R, p.G, p.B} {
			d := float64(v) - mean
			sq += d * d
		}
	}
	std := math.Sqrt(sq / count)
	return int(math.Min(math.RoundToEven(std/contrastSpread*100), 100))
}

// DominantColors runs greedy online clustering over every tenth pixel.
// Near-black and near-white pixels are skipped, and a candidate becomes a new
// center only if it is farther than 30 from every existing center.
func DominantColors(pixels []RGB) []RGB {
	var centers []RGB
	for i := 0; i < len(pixels) && len(centers) < maxDominantColors; i += dominantStride {
		p := pixels[i]
		sum := int(p.R) + int(p.G) + int(p.B)
		if sum < darkPixelSum || sum > lightPixelSum {
			continue
		}
		distinct := true
		for _, c := range centers {
			if ColorDistance(p, c) <= minColorDistance {
				distinct = false
				break
			}
		}
		if distinct {
			centers = append(centers, p)
		}
	}
	return centers
}

// ColorDistance is the Euclidean distance in RGB space.
func ColorDistance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func toDominant(colors []RGB) []DominantColor {
	out := make([]DominantColor, 0, len(colors))
	for _, c := range colors {
		out = append(out, DominantColor{RGB: rgbString(c), Hex: hexString(c)})
	}
	return out
}

func rgbString(c RGB) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

func hexString(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
