package imagemeta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

const (
	exifTimeLayout    = "2006:01:02 15:04:05"
	displayTimeLayout = "January 02, 2006 at 15:04:05"
	notAvailable      = "Not available"
	unknownCamera     = "Unknown"
)

var exifMarker = []byte("Exif\x00\x00")

// ExtractCapture parses the EXIF block embedded in a JPEG. It returns nil, nil
// when the image carries no EXIF block at all.
func ExtractCapture(raw []byte) (*CaptureInfo, error) {
	if !bytes.Contains(raw, exifMarker) {
		return nil, nil
	}
	return decodeCapture(raw)
}

// ExtractWebPCapture reads the EXIF chunk of a WebP (RIFF) container. It
// returns nil, nil when there is no such chunk.
func ExtractWebPCapture(raw []byte) (*CaptureInfo, error) {
	chunk, ok := riffChunk(raw, "EXIF")
	if !ok {
		return nil, nil
	}
	return decodeCapture(bytes.TrimPrefix(chunk, exifMarker))
}

// riffChunk returns the payload of the first top-level chunk named fourCC in
// a RIFF/WEBP file.
func riffChunk(raw []byte, fourCC string) ([]byte, bool) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WEBP" {
		return nil, false
	}
	for pos := 12; pos+8 <= len(raw); {
		id := string(raw[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(raw[pos+4 : pos+8]))
		start := pos + 8
		if size < 0 || size > len(raw)-start {
			return nil, false
		}
		if id == fourCC {
			return raw[start : start+size], true
		}
		pos = start + size + size%2
	}
	return nil, false
}

func decodeCapture(raw []byte) (*CaptureInfo, error) {
	x, err := exif.Decode(bytes.NewReader(raw))
	if x == nil {
		if err == nil {
			err = fmt.Errorf("exif: empty result")
		}
		return nil, err
	}

	tags := make(map[string]string)
	if err := x.Walk(tagCollector(tags)); err != nil {
		return nil, err
	}

	info := &CaptureInfo{
		Tags:        tags,
		DateTaken:   notAvailable,
		CameraMake:  unknownCamera,
		CameraModel: unknownCamera,
	}

	if v, ok := tags[string(exif.DateTimeOriginal)]; ok && v != "" {
		info.DateTaken = v
		if taken, err := time.ParseInLocation(exifTimeLayout, v, time.Local); err == nil {
			info.DateTakenFormatted = taken.Format(displayTimeLayout)
			info.DateTakenUnix = taken.Unix()
		}
	}

	if v, ok := tags[string(exif.Make)]; ok {
		info.CameraMake = v
	}
	if v, ok := tags[string(exif.Model)]; ok {
		info.CameraModel = v
	}
	info.Camera = strings.TrimSpace(info.CameraMake + " " + info.CameraModel)

	if v, ok := tags[string(exif.LensModel)]; ok {
		info.Lens = v
	}
	if v, ok := tags[string(exif.ExposureTime)]; ok {
		info.Exposure = v
		info.ExposureFormatted = formatExposure(v)
	}
	if tag, err := x.Get(exif.FNumber); err == nil {
		info.Aperture = "f/" + decimalValue(tag)
	}
	if v, ok := tags[string(exif.ISOSpeedRatings)]; ok {
		info.ISO = v
	}
	if tag, err := x.Get(exif.FocalLength); err == nil {
		info.FocalLength = decimalValue(tag) + "mm"
	}

	_, latErr := x.Get(exif.GPSLatitude)
	_, lngErr := x.Get(exif.GPSLongitude)
	info.HasLocation = latErr == nil && lngErr == nil

	return info, nil
}

type tagCollector map[string]string

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	c[string(name)] = tagText(tag)
	return nil
}

// tagText renders a tag as plain text. Values that are not text or numbers
// are replaced by a placeholder naming their size.
func tagText(tag *tiff.Tag) string {
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return binaryPlaceholder(tag)
		}
		return strings.TrimSpace(strings.TrimRight(s, "\x00"))
	case tiff.RatVal:
		parts := make([]string, 0, tag.Count)
		for i := 0; i < int(tag.Count); i++ {
			num, den, err := tag.Rat2(i)
			if err != nil {
				return binaryPlaceholder(tag)
			}
			parts = append(parts, fmt.Sprintf("%d/%d", num, den))
		}
		return strings.Join(parts, ", ")
	case tiff.IntVal:
		parts := make([]string, 0, tag.Count)
		for i := 0; i < int(tag.Count); i++ {
			v, err := tag.Int64(i)
			if err != nil {
				return binaryPlaceholder(tag)
			}
			parts = append(parts, strconv.FormatInt(v, 10))
		}
		return strings.Join(parts, ", ")
	case tiff.FloatVal:
		parts := make([]string, 0, tag.Count)
		for i := 0; i < int(tag.Count); i++ {
			v, err := tag.Float(i)
			if err != nil {
				return binaryPlaceholder(tag)
			}
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		}
		return strings.Join(parts, ", ")
	default:
		return binaryPlaceholder(tag)
	}
}

func binaryPlaceholder(tag *tiff.Tag) string {
	return fmt.Sprintf("Binary data (%d bytes)", len(tag.Val))
}

// decimalValue renders the first value of a rational or numeric tag in
// shortest decimal form, e.g. 28/10 becomes "2.8".
func decimalValue(tag *tiff.Tag) string {
	switch tag.Format() {
	case tiff.RatVal:
		num, den, err := tag.Rat2(0)
		if err != nil || den == 0 {
			return tagText(tag)
		}
		return strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64)
	default:
		return tagText(tag)
	}
}

// formatExposure turns "1/250" into "1/250s" and "3/2" into "1.50s".
// Anything that is not exactly two numeric parts is returned unchanged.
func formatExposure(raw string) string {
	parts := strings.Split(raw, "/")
	if len(parts) != 2 {
		return raw
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return raw
	}
	den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || den == 0 {
		return raw
	}
	if num == 1 {
		return fmt.Sprintf("1/%ds", int64(den))
	}
	return fmt.Sprintf("%.2fs", num/den)
}
