package imagemeta

import (
	"encoding/binary"
	"testing"
	"time"
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

const (
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeUndefined = 7
)

func asciiEntry(tag uint16, s string) ifdEntry {
	data := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data}
}

func shortEntry(tag uint16, v uint16) ifdEntry {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, v)
	return ifdEntry{tag: tag, typ: typeShort, count: 1, data: data}
}

func rationalEntry(tag uint16, pairs ...uint32) ifdEntry {
	data := make([]byte, 4*len(pairs))
	for i, v := range pairs {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	return ifdEntry{tag: tag, typ: typeRational, count: uint32(len(pairs) / 2), data: data}
}

func pointerEntry(tag uint16) ifdEntry {
	return ifdEntry{tag: tag, typ: typeLong, count: 1, data: make([]byte, 4)}
}

func ifdSize(entries []ifdEntry) int {
	n := 2 + 12*len(entries) + 4
	for _, e := range entries {
		if len(e.data) > 4 {
			n += len(e.data) + len(e.data)%2
		}
	}
	return n
}

func encodeIFD(entries []ifdEntry, start int) []byte {
	head := make([]byte, 2+12*len(entries)+4)
	binary.LittleEndian.PutUint16(head, uint16(len(entries)))
	var extra []byte
	dataOffset := start + len(head)
	for i, e := range entries {
		off := 2 + 12*i
		binary.LittleEndian.PutUint16(head[off:], e.tag)
		binary.LittleEndian.PutUint16(head[off+2:], e.typ)
		binary.LittleEndian.PutUint32(head[off+4:], e.count)
		if len(e.data) <= 4 {
			copy(head[off+8:off+12], e.data)
			continue
		}
		binary.LittleEndian.PutUint32(head[off+8:], uint32(dataOffset+len(extra)))
		extra = append(extra, e.data...)
		if len(e.data)%2 == 1 {
			extra = append(extra, 0)
		}
	}
	return append(head, extra...)
}

// buildTIFF lays out IFD0, the Exif sub-IFD and the GPS sub-IFD back to back
// and patches the two pointer tags in IFD0.
func buildTIFF(ifd0 []ifdEntry, exifIFD []ifdEntry, gpsIFD []ifdEntry) []byte {
	exifStart := 8 + ifdSize(ifd0)
	gpsStart := exifStart + ifdSize(exifIFD)
	for i := range ifd0 {
		switch ifd0[i].tag {
		case 0x8769:
			binary.LittleEndian.PutUint32(ifd0[i].data, uint32(exifStart))
		case 0x8825:
			binary.LittleEndian.PutUint32(ifd0[i].data, uint32(gpsStart))
		}
	}

	out := []byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}
	out = append(out, encodeIFD(ifd0, 8)...)
	out = append(out, encodeIFD(exifIFD, exifStart)...)
	if len(gpsIFD) > 0 {
		out = append(out, encodeIFD(gpsIFD, gpsStart)...)
	}
	return out
}

// withAPP1 inserts an APP1 segment right after the JPEG SOI marker.
func withAPP1(jpegBytes, payload []byte) []byte {
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	out := append([]byte{}, jpegBytes[:2]...)
	out = append(out, seg...)
	return append(out, jpegBytes[2:]...)
}

func sampleExif(withGPS bool) []byte {
	ifd0 := []ifdEntry{
		asciiEntry(0x010F, "Apple"),
		asciiEntry(0x0110, "iPhone 13"),
		pointerEntry(0x8769),
	}
	exifIFD := []ifdEntry{
		rationalEntry(0x829A, 1, 125),
		rationalEntry(0x829D, 18, 10),
		shortEntry(0x8827, 100),
		asciiEntry(0x9003, "2023:06:15 14:30:00"),
		rationalEntry(0x920A, 51, 10),
		{tag: 0x927C, typ: typeUndefined, count: 6, data: []byte{1, 2, 3, 4, 5, 6}},
		asciiEntry(0xA434, "iPhone 13 back camera"),
	}
	var gps []ifdEntry
	if withGPS {
		ifd0 = append(ifd0, pointerEntry(0x8825))
		gps = []ifdEntry{
			asciiEntry(0x0001, "N"),
			rationalEntry(0x0002, 52, 1, 22, 1, 0, 1),
			asciiEntry(0x0003, "E"),
			rationalEntry(0x0004, 4, 1, 53, 1, 0, 1),
		}
	}
	return append([]byte("Exif\x00\x00"), buildTIFF(ifd0, exifIFD, gps)...)
}

func TestExtractCaptureReadsCameraFields(t *testing.T) {
	raw := withAPP1(encodeJPEG(t, noisyRGBA(16, 16, 1)), sampleExif(true))

	info, err := ExtractCapture(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil {
		t.Fatal("expected capture info")
	}
	if info.CameraMake != "Apple" || info.CameraModel != "iPhone 13" || info.Camera != "Apple iPhone 13" {
		t.Fatalf("unexpected camera: %q %q %q", info.CameraMake, info.CameraModel, info.Camera)
	}
	if info.Lens != "iPhone 13 back camera" {
		t.Fatalf("unexpected lens: %q", info.Lens)
	}
	if info.Exposure != "1/125" || info.ExposureFormatted != "1/125s" {
		t.Fatalf("unexpected exposure: %q %q", info.Exposure, info.ExposureFormatted)
	}
	if info.Aperture != "f/1.8" {
		t.Fatalf("unexpected aperture: %q", info.Aperture)
	}
	if info.ISO != "100" {
		t.Fatalf("unexpected iso: %q", info.ISO)
	}
	if info.FocalLength != "5.1mm" {
		t.Fatalf("unexpected focal length: %q", info.FocalLength)
	}
	if info.DateTaken != "2023:06:15 14:30:00" || info.DateTakenFormatted != "June 15, 2023 at 14:30:00" {
		t.Fatalf("unexpected date: %q %q", info.DateTaken, info.DateTakenFormatted)
	}
	if want := time.Date(2023, 6, 15, 14, 30, 0, 0, time.Local).Unix(); info.DateTakenUnix != want {
		t.Fatalf("unexpected unix time: %d want %d", info.DateTakenUnix, want)
	}
	if !info.HasLocation {
		t.Fatal("expected location flag")
	}
	if got := info.Tags["MakerNote"]; got != "Binary data (6 bytes)" {
		t.Fatalf("binary tag should be a placeholder, got %q", got)
	}
}

func TestExtractCaptureWithoutGPS(t *testing.T) {
	raw := withAPP1(encodeJPEG(t, noisyRGBA(16, 16, 2)), sampleExif(false))
	info, err := ExtractCapture(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.HasLocation {
		t.Fatal("location flag must be false without GPS tags")
	}
}

func TestExtractCaptureNoExifBlock(t *testing.T) {
	info, err := ExtractCapture(encodeJPEG(t, noisyRGBA(8, 8, 4)))
	if err != nil || info != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", info, err)
	}
}

func TestExtractCaptureKeepsUnparseableDate(t *testing.T) {
	ifd0 := []ifdEntry{pointerEntry(0x8769)}
	exifIFD := []ifdEntry{asciiEntry(0x9003, "sometime in june")}
	payload := append([]byte("Exif\x00\x00"), buildTIFF(ifd0, exifIFD, nil)...)

	info, err := ExtractCapture(withAPP1(encodeJPEG(t, noisyRGBA(8, 8, 5)), payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.DateTaken != "sometime in june" {
		t.Fatalf("raw date must be kept, got %q", info.DateTaken)
	}
	if info.DateTakenFormatted != "" || info.DateTakenUnix != 0 {
		t.Fatal("derived date fields must be absent")
	}
	if info.Camera != "Unknown Unknown" {
		t.Fatalf("missing make/model should default to Unknown, got %q", info.Camera)
	}
}

func TestBuildJPEGWithExifAttachesCapture(t *testing.T) {
	raw := withAPP1(encodeJPEG(t, noisyRGBA(64, 64, 6)), sampleExif(true))
	d := newTestBuilder().Build(raw)
	if d.CaptureInfo == nil || d.Camera != "Apple iPhone 13" {
		t.Fatalf("expected capture block, got %+v", d.CaptureInfo)
	}
	if d.ColorStats == nil || d.Thumbnail == "" {
		t.Fatal("other blocks must be present")
	}
}

func TestFormatExposure(t *testing.T) {
	cases := map[string]string{
		"1/250":  "1/250s",
		"3/2":    "1.50s",
		"10/1":   "10.00s",
		"1/0":    "1/0",
		"a/b":    "a/b",
		"1/2/3":  "1/2/3",
		"0.004":  "0.004",
		" 1/60 ": "1/60s",
	}
	for in, want := range cases {
		if got := formatExposure(in); got != want {
			t.Fatalf("formatExposure(%q) = %q, want %q", in, got, want)
		}
	}
}

// webpContainer wraps chunks in a RIFF/WEBP header. Chunk payloads of odd
// length are padded as the format requires.
func webpContainer(chunks ...[]byte) []byte {
	body := []byte("WEBP")
	for i := 0; i+1 < len(chunks); i += 2 {
		head := make([]byte, 8)
		copy(head, chunks[i])
		binary.LittleEndian.PutUint32(head[4:], uint32(len(chunks[i+1])))
		body = append(body, head...)
		body = append(body, chunks[i+1]...)
		if len(chunks[i+1])%2 == 1 {
			body = append(body, 0)
		}
	}
	out := []byte("RIFF")
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(len(body)))
	out = append(out, size...)
	return append(out, body...)
}

func TestExtractWebPCaptureReadsExifChunk(t *testing.T) {
	tiffOnly := sampleExif(true)[len("Exif\x00\x00"):]
	for name, payload := range map[string][]byte{
		"bare tiff":   tiffOnly,
		"exif prefix": sampleExif(true),
	} {
		raw := webpContainer(
			[]byte("VP8X"), make([]byte, 10),
			[]byte("ICCP"), []byte{1, 2, 3},
			[]byte("EXIF"), payload,
		)
		info, err := ExtractWebPCapture(raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if info == nil || info.Camera != "Apple iPhone 13" || !info.HasLocation {
			t.Fatalf("%s: unexpected capture info: %+v", name, info)
		}
	}
}

func TestExtractWebPCaptureWithoutExif(t *testing.T) {
	cases := map[string][]byte{
		"no exif chunk":  webpContainer([]byte("VP8X"), make([]byte, 10)),
		"not riff":       encodeJPEG(t, noisyRGBA(8, 8, 11)),
		"truncated size": append(webpContainer([]byte("VP8X"), make([]byte, 10)), 'E', 'X', 'I', 'F', 0xFF, 0xFF, 0, 0),
	}
	for name, raw := range cases {
		info, err := ExtractWebPCapture(raw)
		if err != nil || info != nil {
			t.Fatalf("%s: expected nil, nil; got %+v, %v", name, info, err)
		}
	}
}
