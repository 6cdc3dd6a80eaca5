// Package imagemeta extracts descriptive facts from raw image bytes: format,
// dimensions, content hashes, a bounded preview, EXIF capture metadata and
// color statistics.
package imagemeta

// Format is the detected container format of an upload.
type Format string

const (
	FormatPNG   Format = "PNG"
	FormatJPEG  Format = "JPEG"
	FormatGIF   Format = "GIF"
	FormatBMP   Format = "BMP"
	FormatWEBP  Format = "WEBP"
	FormatOther Format = "other"
)

// BrightnessCategory buckets the brightness percentage.
type BrightnessCategory string

const (
	BrightnessDark   BrightnessCategory = "Dark"
	BrightnessMedium BrightnessCategory = "Medium"
	BrightnessBright BrightnessCategory = "Bright"
)

// Descriptor is the metadata record for one upload. Capture and color blocks
// are optional and flattened into the same JSON object.
type Descriptor struct {
	Format        Format   `json:"format,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	Width         int      `json:"width,omitempty"`
	Height        int      `json:"height,omitempty"`
	AspectRatio   float64  `json:"aspect_ratio,omitempty"`
	FileSize      string   `json:"file_size,omitempty"`
	FileSizeBytes int      `json:"file_size_bytes,omitempty"`
	Hash          string   `json:"hash,omitempty"`
	SHA256        string   `json:"sha256,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	AnalyzedAt    string   `json:"analyzed_at,omitempty"`
	Filename      string   `json:"filename,omitempty"`
	Error         string   `json:"error,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`

	TotalProcessingTime   string  `json:"total_processing_time,omitempty"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds,omitempty"`

	*CaptureInfo
	*ColorStats
}

// Decoded reports whether the image itself could be read.
func (d *Descriptor) Decoded() bool {
	return d != nil && d.Error == "" && d.Width > 0 && d.Height > 0
}

// CaptureInfo holds the camera-embedded EXIF facts.
type CaptureInfo struct {
	DateTaken          string            `json:"date_taken,omitempty"`
	DateTakenFormatted string            `json:"date_taken_formatted,omitempty"`
	DateTakenUnix      int64             `json:"date_taken_unix,omitempty"`
	CameraMake         string            `json:"camera_make,omitempty"`
	CameraModel        string            `json:"camera_model,omitempty"`
	Camera             string            `json:"camera,omitempty"`
	Lens               string            `json:"lens,omitempty"`
	Exposure           string            `json:"exposure,omitempty"`
	ExposureFormatted  string            `json:"exposure_formatted,omitempty"`
	Aperture           string            `json:"aperture,omitempty"`
	ISO                string            `json:"iso,omitempty"`
	FocalLength        string            `json:"focal_length,omitempty"`
	HasLocation        bool              `json:"has_location,omitempty"`
	Tags               map[string]string `json:"exif,omitempty"`
}

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// DominantColor is one palette entry in both CSS notations.
type DominantColor struct {
	RGB string `json:"rgb"`
	Hex string `json:"hex"`
}

// Histogram holds eight equal-width buckets per channel over 0..255.
type Histogram struct {
	R [8]int `json:"r"`
	G [8]int `json:"g"`
	B [8]int `json:"b"`
}

// ColorStats is produced only for three-channel RGB images.
type ColorStats struct {
	AvgColor           string             `json:"avg_color"`
	AvgColorHex        string             `json:"avg_color_hex"`
	ColorHistogram     Histogram          `json:"color_histogram"`
	DominantColors     []DominantColor    `json:"dominant_colors"`
	Brightness         int                `json:"brightness"`
	BrightnessCategory BrightnessCategory `json:"brightness_category"`
	Contrast           int                `json:"contrast"`
}
