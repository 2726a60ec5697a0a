package dataset

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/born-ml/boxnet/internal/tensor"
)

// imageExtensions lists the file extensions enumerated as images.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// IsImageFile reports whether name has a supported image extension
// (case-insensitive).
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// DecodeImage opens and decodes the image file at path.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: image file %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return img, nil
}

// LoadImage decodes the image at path and preprocesses it to shape [C, H, W].
func LoadImage(path string, shape tensor.Shape) ([]float32, error) {
	img, err := DecodeImage(path)
	if err != nil {
		return nil, err
	}
	return Preprocess(img, shape), nil
}

// Preprocess resizes img to the [C, H, W] shape with bilinear interpolation
// and returns planar pixels normalized to [0, 1].
//
// C=1 uses ITU-R 601 luma; C=3 keeps R, G and B planes. Alpha is dropped:
// the stored color of a transparent pixel is used as is.
func Preprocess(img image.Image, shape tensor.Shape) []float32 {
	c, h, w := shape[0], shape[1], shape[2]

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), opaque(img), img.Bounds(), draw.Src, nil)

	out := make([]float32, c*h*w)
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := dst.PixOffset(x, y)
			r, g, b := dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2]
			p := y*w + x
			if c == 1 {
				gray := color.GrayModel.Convert(color.RGBA{R: r, G: g, B: b, A: 0xff}).(color.Gray)
				out[p] = float32(gray.Y) / 255
				continue
			}
			out[p] = float32(r) / 255
			out[plane+p] = float32(g) / 255
			out[2*plane+p] = float32(b) / 255
		}
	}
	return out
}

// opaque returns img with every alpha set to fully opaque, keeping the
// non-premultiplied color channels.
func opaque(img image.Image) *image.NRGBA {
	b := img.Bounds()
	var dst *image.NRGBA
	if src, ok := img.(*image.NRGBA); ok {
		dst = &image.NRGBA{Pix: append([]uint8(nil), src.Pix...), Stride: src.Stride, Rect: src.Rect}
	} else {
		dst = image.NewNRGBA(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := dst.Pix[dst.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			row[4*x+3] = 0xff
		}
	}
	return dst
}
