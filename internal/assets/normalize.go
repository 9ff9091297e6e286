// Package assets converts uploaded artwork (raster images or PDFs) into
// fixed-aspect assets ready for the display.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	// MaxUploadSize bounds accepted input files.
	MaxUploadSize = 10 << 20

	// AspectTolerance is the relative deviation from the target aspect
	// ratio within which an upload is accepted without a manual crop.
	AspectTolerance = 0.05

	// MaxOutputWidth caps the encoded asset's pixel width.
	MaxOutputWidth = 1200

	jpegQuality = 92

	// pdfRasterDPI bounds the intermediate raster of a PDF page; the
	// output cap applies on top of it.
	pdfRasterDPI = 144
)

// Normalizer failure modes. None are retryable: the caller must re-collect
// user input.
var (
	ErrUnsupportedMedia = errors.New("assets: unsupported media type")
	ErrFileTooLarge     = errors.New("assets: file exceeds maximum size")
	ErrDecode           = errors.New("assets: cannot decode input")
	ErrRender           = errors.New("assets: render failed")
	ErrCropRequired     = errors.New("assets: aspect ratio outside tolerance, crop selection required")
)

// RawUpload is an uploaded file as received, before any processing.
type RawUpload struct {
	Filename string
	Data     []byte
}

// NormalizedAsset is the encoded output, ready for persistence.
type NormalizedAsset struct {
	Data        []byte
	ContentType string
	Ext         string
}

// CropSelection is an explicit selection rectangle in source pixel
// coordinates, with optional rotation (degrees) and uniform zoom applied
// around the output center.
type CropSelection struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
	Zoom     float64
}

var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

// Normalize converts an uploaded image or PDF first page into an asset whose
// aspect ratio matches targetAspect (width/height). If the source deviates
// from the target by more than AspectTolerance and no crop selection is
// given, ErrCropRequired is returned and the caller must collect one.
//
// PNG input stays PNG; everything else, including rasterized PDF pages, is
// encoded as JPEG. Letterboxed regions are filled white because JPEG has no
// transparency.
func Normalize(upload RawUpload, targetAspect float64, crop *CropSelection) (*NormalizedAsset, error) {
	if len(upload.Data) > MaxUploadSize {
		return nil, ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if !allowedExts[ext] {
		return nil, ErrUnsupportedMedia
	}

	var src image.Image
	var err error
	if ext == ".pdf" {
		src, err = rasterizePDF(upload.Data)
	} else {
		src, _, err = image.Decode(bytes.NewReader(upload.Data))
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, ErrDecode
	}

	if crop == nil {
		actual := float64(bounds.Dx()) / float64(bounds.Dy())
		if NeedsCrop(actual, targetAspect) {
			return nil, ErrCropRequired
		}
	}

	dst, err := render(src, targetAspect, crop)
	if err != nil {
		return nil, err
	}

	return encode(dst, ext)
}

// NeedsCrop reports whether the relative deviation between the actual and
// target aspect ratios exceeds the tolerance. A tiny epsilon keeps inputs
// sitting exactly on the boundary on the accepted side despite float error.
func NeedsCrop(actualAspect, targetAspect float64) bool {
	deviation := math.Abs(actualAspect-targetAspect) / targetAspect
	return deviation-AspectTolerance > 1e-9
}

func rasterizePDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, ErrDecode
	}

	img, err := doc.ImageDPI(0, pdfRasterDPI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return img, nil
}

// render draws the (possibly cropped, rotated and zoomed) source into an
// output canvas matching the target aspect, on a white backdrop.
func render(src image.Image, targetAspect float64, crop *CropSelection) (image.Image, error) {
	bounds := src.Bounds()

	srcRect := bounds
	if crop != nil {
		srcRect = clampRect(image.Rect(
			int(math.Round(crop.X)),
			int(math.Round(crop.Y)),
			int(math.Round(crop.X+crop.Width)),
			int(math.Round(crop.Y+crop.Height)),
		), bounds)
		if srcRect.Empty() {
			return nil, ErrRender
		}
	}

	outW := srcRect.Dx()
	if outW > MaxOutputWidth {
		outW = MaxOutputWidth
	}
	outH := int(math.Round(float64(outW) / targetAspect))
	if outH < 1 {
		return nil, ErrRender
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	rotation, zoom := 0.0, 1.0
	if crop != nil {
		rotation = crop.Rotation
		if crop.Zoom > 0 {
			zoom = crop.Zoom
		}
	}

	xdraw.CatmullRom.Transform(dst, transformMatrix(srcRect, outW, outH, rotation, zoom), src, srcRect, xdraw.Over, nil)
	return dst, nil
}

// transformMatrix maps the selection rectangle onto the full output canvas,
// then rotates and zooms around the canvas center, mirroring the authoring
// UI's canvas pipeline.
func transformMatrix(srcRect image.Rectangle, outW, outH int, rotationDeg, zoom float64) f64.Aff3 {
	sx := float64(outW) / float64(srcRect.Dx())
	sy := float64(outH) / float64(srcRect.Dy())

	srcCx := float64(srcRect.Min.X) + float64(srcRect.Dx())/2
	srcCy := float64(srcRect.Min.Y) + float64(srcRect.Dy())/2
	dstCx := float64(outW) / 2
	dstCy := float64(outH) / 2

	theta := rotationDeg * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	// dst = C + zoom * R(theta) * S * (src - srcC)
	a := zoom * cos * sx
	b := -zoom * sin * sy
	d := zoom * sin * sx
	e := zoom * cos * sy

	return f64.Aff3{
		a, b, dstCx - a*srcCx - b*srcCy,
		d, e, dstCy - d*srcCx - e*srcCy,
	}
}

func clampRect(r, bounds image.Rectangle) image.Rectangle {
	return r.Intersect(bounds)
}

func encode(img image.Image, srcExt string) (*NormalizedAsset, error) {
	var buf bytes.Buffer

	if srcExt == ".png" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
		return &NormalizedAsset{Data: buf.Bytes(), ContentType: "image/png", Ext: ".png"}, nil
	}

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return &NormalizedAsset{Data: buf.Bytes(), ContentType: "image/jpeg", Ext: ".jpg"}, nil
}
