package assets

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, asset *NormalizedAsset) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(asset.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestNeedsCrop(t *testing.T) {
	tests := []struct {
		name   string
		actual float64
		target float64
		want   bool
	}{
		{"exact match", 0.75, 0.75, false},
		{"within tolerance", 0.76, 0.75, false},
		{"exactly on boundary", 1.05, 1.0, false},
		{"just past boundary", 1.0501, 1.0, true},
		{"well outside", 1.2, 0.75, true},
		{"narrower than target", 0.70, 0.75, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsCrop(tt.actual, tt.target); got != tt.want {
				t.Errorf("NeedsCrop(%v, %v) = %v, want %v", tt.actual, tt.target, got, tt.want)
			}
		})
	}
}

func TestNormalizeAcceptsMatchingAspect(t *testing.T) {
	upload := RawUpload{Filename: "photo.jpg", Data: encodeJPEG(t, 300, 400)}

	asset, err := Normalize(upload, 0.75, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if asset.ContentType != "image/jpeg" || asset.Ext != ".jpg" {
		t.Errorf("output type = %s %s", asset.ContentType, asset.Ext)
	}

	w, h := decodeDims(t, asset)
	aspect := float64(w) / float64(h)
	if aspect < 0.74 || aspect > 0.76 {
		t.Errorf("output aspect = %v, want ~0.75 (%dx%d)", aspect, w, h)
	}
}

func TestNormalizeRequiresCropOutsideTolerance(t *testing.T) {
	// 120x100 deviates 20% from a square target.
	upload := RawUpload{Filename: "wide.jpg", Data: encodeJPEG(t, 120, 100)}

	_, err := Normalize(upload, 1.0, nil)
	if !errors.Is(err, ErrCropRequired) {
		t.Fatalf("err = %v, want ErrCropRequired", err)
	}
}

func TestNormalizeBoundaryAspectAccepted(t *testing.T) {
	// 105x100 against a square target sits exactly on the 5% boundary.
	upload := RawUpload{Filename: "edge.jpg", Data: encodeJPEG(t, 105, 100)}

	if _, err := Normalize(upload, 1.0, nil); err != nil {
		t.Fatalf("boundary aspect rejected: %v", err)
	}
}

func TestNormalizeCropSelectionOverridesAspectCheck(t *testing.T) {
	upload := RawUpload{Filename: "wide.jpg", Data: encodeJPEG(t, 800, 200)}
	crop := &CropSelection{X: 100, Y: 0, Width: 200, Height: 200, Zoom: 1}

	asset, err := Normalize(upload, 1.0, crop)
	if err != nil {
		t.Fatalf("Normalize with crop: %v", err)
	}

	w, h := decodeDims(t, asset)
	if w != h {
		t.Errorf("cropped output = %dx%d, want square", w, h)
	}
}

func TestNormalizePNGStaysPNG(t *testing.T) {
	upload := RawUpload{Filename: "logo.png", Data: encodePNG(t, 100, 100)}

	asset, err := Normalize(upload, 1.0, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if asset.ContentType != "image/png" || asset.Ext != ".png" {
		t.Errorf("output type = %s %s, want png", asset.ContentType, asset.Ext)
	}
	if _, err := png.Decode(bytes.NewReader(asset.Data)); err != nil {
		t.Errorf("output is not valid png: %v", err)
	}
}

func TestNormalizeCapsOutputWidth(t *testing.T) {
	upload := RawUpload{Filename: "big.jpg", Data: encodeJPEG(t, 2000, 2000)}

	asset, err := Normalize(upload, 1.0, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	w, _ := decodeDims(t, asset)
	if w > MaxOutputWidth {
		t.Errorf("output width = %d, cap is %d", w, MaxOutputWidth)
	}
}

func TestNormalizeRejectsOversizedFile(t *testing.T) {
	upload := RawUpload{Filename: "huge.jpg", Data: make([]byte, MaxUploadSize+1)}

	_, err := Normalize(upload, 1.0, nil)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestNormalizeRejectsUnsupportedExtension(t *testing.T) {
	for _, name := range []string{"anim.gif", "vector.svg", "doc.docx", "noext"} {
		_, err := Normalize(RawUpload{Filename: name, Data: []byte("x")}, 1.0, nil)
		if !errors.Is(err, ErrUnsupportedMedia) {
			t.Errorf("%s: err = %v, want ErrUnsupportedMedia", name, err)
		}
	}
}

func TestNormalizeRejectsCorruptImage(t *testing.T) {
	_, err := Normalize(RawUpload{Filename: "broken.jpg", Data: []byte("not an image")}, 1.0, nil)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestNormalizeRejectsEmptyCropSelection(t *testing.T) {
	upload := RawUpload{Filename: "photo.jpg", Data: encodeJPEG(t, 100, 100)}
	crop := &CropSelection{X: 500, Y: 500, Width: 50, Height: 50, Zoom: 1}

	_, err := Normalize(upload, 1.0, crop)
	if !errors.Is(err, ErrRender) {
		t.Fatalf("err = %v, want ErrRender for selection outside the image", err)
	}
}
