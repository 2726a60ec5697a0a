package infer

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// annotateMinSide is the shortest side an overlay is upscaled to so that
// boxes and text stay legible on small model inputs.
const annotateMinSide = 256

// Annotate draws pred's box and class label over src and writes a PNG to
// outPath.
func Annotate(src image.Image, pred Prediction, className, outPath string) error {
	img := upscale(src, annotateMinSide)
	bounds := img.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())

	dc := gg.NewContextForImage(img)

	cx, cy := float64(pred.Box[0])*w, float64(pred.Box[1])*h
	bw, bh := float64(pred.Box[2])*w, float64(pred.Box[3])*h
	x0, y0 := cx-bw/2, cy-bh/2

	dc.SetRGB(1, 0, 0)
	dc.SetLineWidth(2)
	dc.DrawRectangle(x0, y0, bw, bh)
	dc.Stroke()

	label := fmt.Sprintf("%s %.0f%%", className, 100*pred.Confidence())
	tw, th := dc.MeasureString(label)
	ty := max(y0, th+4)
	dc.DrawRectangle(x0, ty-th-4, tw+4, th+4)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(label, x0+2, ty-2, 0, 0)

	if err := dc.SavePNG(outPath); err != nil {
		return fmt.Errorf("failed to write overlay %s: %w", outPath, err)
	}
	return nil
}

// upscale enlarges src with nearest-neighbour sampling until its shorter
// side is at least minSide. Larger images are returned unchanged.
func upscale(src image.Image, minSide int) image.Image {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	if side >= minSide || side == 0 {
		return src
	}
	scale := (minSide + side - 1) / side
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
