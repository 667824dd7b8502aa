package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned for uploads that cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// ImageNet statistics, used when the model metadata does not override them.
var (
	DefaultMean = [3]float32{0.485, 0.456, 0.406}
	DefaultStd  = [3]float32{0.229, 0.224, 0.225}
)

// Decode reads a JPEG, PNG, GIF or WebP image and applies its EXIF
// orientation, if any.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty body", ErrInvalidImage)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if format == "jpeg" {
		img = orient(img, orientation(data))
	}
	return img, format, nil
}

// orientation returns the EXIF orientation tag, or 1 when absent.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// orient maps pixels so that the image is upright for EXIF orientations
// 2 through 8.
func orient(img image.Image, o int) image.Image {
	if o < 2 || o > 8 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if o >= 5 {
		dw, dh = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := x, y
			switch o {
			case 2: // mirror horizontal
				dx = w - 1 - x
			case 3: // rotate 180
				dx, dy = w-1-x, h-1-y
			case 4: // mirror vertical
				dy = h - 1 - y
			case 5: // transpose
				dx, dy = y, x
			case 6: // rotate 90 clockwise
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // rotate 90 counter-clockwise
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// Preprocessor turns decoded images into model input tensors.
type Preprocessor struct {
	Size int
	Mean [3]float32
	Std  [3]float32
}

func NewPreprocessor(size int, mean, std [3]float32) *Preprocessor {
	return &Preprocessor{Size: size, Mean: mean, Std: std}
}

// TensorLen is the number of float32 values produced by Tensor.
func (p *Preprocessor) TensorLen() int {
	return 3 * p.Size * p.Size
}

// Tensor resizes img to Size×Size and returns it in CHW layout with each
// channel normalised as (v/255 - mean) / std.
func (p *Preprocessor) Tensor(img image.Image) []float32 {
	size := uint(p.Size)
	resized := resize.Resize(size, size, img, resize.Lanczos3)

	rgba := image.NewRGBA(image.Rect(0, 0, p.Size, p.Size))
	draw.Draw(rgba, rgba.Bounds(), resized, resized.Bounds().Min, draw.Src)

	plane := p.Size * p.Size
	out := make([]float32, 3*plane)
	for y := 0; y < p.Size; y++ {
		for x := 0; x < p.Size; x++ {
			i := rgba.PixOffset(x, y)
			idx := y*p.Size + x
			for c := 0; c < 3; c++ {
				v := float32(rgba.Pix[i+c]) / 255
				out[c*plane+idx] = (v - p.Mean[c]) / p.Std[c]
			}
		}
	}
	return out
}

// Prepare decodes data and converts it to a tensor in one step.
func (p *Preprocessor) Prepare(data []byte) ([]float32, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return p.Tensor(img), nil
}
