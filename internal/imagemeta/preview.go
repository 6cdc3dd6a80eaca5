package imagemeta

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"

	"github.com/nfnt/resize"
)

const (
	previewMaxSide = 200
	previewQuality = 70
	previewPrefix  = "data:image/jpeg;base64,"
)

// EncodePreview shrinks img to fit within 200x200, flattens transparency onto
// white and returns the JPEG as a data URI. Smaller images are not enlarged.
func EncodePreview(img image.Image) (string, error) {
	thumb := resize.Thumbnail(previewMaxSide, previewMaxSide, img, resize.Lanczos3)

	b := thumb.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), thumb, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: previewQuality}); err != nil {
		return "", err
	}
	return previewPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodePreview reverses EncodePreview.
func DecodePreview(uri string) (image.Image, error) {
	if !strings.HasPrefix(uri, previewPrefix) {
		return nil, errors.New("imagemeta: not a jpeg data uri")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, previewPrefix))
	if err != nil {
		return nil, err
	}
	return jpeg.Decode(bytes.NewReader(raw))
}
