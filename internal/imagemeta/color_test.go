package imagemeta

import (
	"image/color"
	"testing"
)

func TestCategorizeBrightnessBoundaries(t *testing.T) {
	cases := []struct {
		percent int
		want    BrightnessCategory
	}{
		{0, BrightnessDark},
		{29, BrightnessDark},
		{30, BrightnessMedium},
		{69, BrightnessMedium},
		{70, BrightnessBright},
		{100, BrightnessBright},
	}
	for _, tc := range cases {
		if got := CategorizeBrightness(tc.percent); got != tc.want {
			t.Fatalf("CategorizeBrightness(%d) = %s, want %s", tc.percent, got, tc.want)
		}
	}
}

func TestAnalyzeColorSolidImage(t *testing.T) {
	stats := AnalyzeColor(solidRGBA(120, 80, color.RGBA{R: 200, G: 100, B: 50, A: 255}))
	if stats == nil {
		t.Fatal("expected color stats")
	}
	if stats.AvgColor != "rgb(200,100,50)" || stats.AvgColorHex != "#c86432" {
		t.Fatalf("unexpected average: %s %s", stats.AvgColor, stats.AvgColorHex)
	}
	if stats.ColorHistogram.R[6] != 2500 || stats.ColorHistogram.G[3] != 2500 || stats.ColorHistogram.B[1] != 2500 {
		t.Fatalf("unexpected histogram: %+v", stats.ColorHistogram)
	}
	if stats.Brightness != 46 || stats.BrightnessCategory != BrightnessMedium {
		t.Fatalf("unexpected brightness: %d %s", stats.Brightness, stats.BrightnessCategory)
	}
	if stats.Contrast != 49 {
		t.Fatalf("unexpected contrast: %d", stats.Contrast)
	}
	if len(stats.DominantColors) != 1 || stats.DominantColors[0].Hex != "#c86432" {
		t.Fatalf("unexpected dominant colors: %+v", stats.DominantColors)
	}
}

func TestAnalyzeColorDarkImageHasNoDominantColors(t *testing.T) {
	stats := AnalyzeColor(solidRGBA(60, 60, color.RGBA{R: 5, G: 5, B: 5, A: 255}))
	if stats.BrightnessCategory != BrightnessDark {
		t.Fatalf("expected Dark, got %s", stats.BrightnessCategory)
	}
	if len(stats.DominantColors) != 0 {
		t.Fatalf("near-black pixels must be skipped, got %+v", stats.DominantColors)
	}
	if stats.Contrast != 0 {
		t.Fatalf("uniform image should have zero contrast, got %d", stats.Contrast)
	}
}

func TestDominantColorsAreBoundedAndDistinct(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		pixels := samplePixels(noisyRGBA(97, 61, seed))
		colors := DominantColors(pixels)
		if len(colors) > maxDominantColors {
			t.Fatalf("seed %d: got %d colors", seed, len(colors))
		}
		for i := range colors {
			for j := i + 1; j < len(colors); j++ {
				if d := ColorDistance(colors[i], colors[j]); d <= minColorDistance {
					t.Fatalf("seed %d: colors %v and %v only %.2f apart", seed, colors[i], colors[j], d)
				}
			}
		}
	}
}

func TestDominantColorsRejectsExactThreshold(t *testing.T) {
	base := RGB{R: 100, G: 100, B: 100}
	atThirty := RGB{R: 130, G: 100, B: 100}
	beyond := RGB{R: 131, G: 100, B: 100}

	pixels := make([]RGB, 30)
	pixels[0], pixels[10], pixels[20] = base, atThirty, beyond

	got := DominantColors(pixels)
	if len(got) != 2 || got[0] != base || got[1] != beyond {
		t.Fatalf("unexpected centers: %+v", got)
	}
}

func TestDominantColorsSamplesEveryTenthPixel(t *testing.T) {
	pixels := make([]RGB, 20)
	for i := range pixels {
		pixels[i] = RGB{R: 100, G: 100, B: 100}
	}
	pixels[5] = RGB{R: 250, G: 10, B: 10}

	got := DominantColors(pixels)
	if len(got) != 1 {
		t.Fatalf("pixel off the stride must be ignored, got %+v", got)
	}
}
