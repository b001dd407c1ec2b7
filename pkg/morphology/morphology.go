// Package morphology implements binary thresholding and the morphological
// operators dilation, erosion, opening and closing.
//
// Images are binary with 0 as foreground and 255 as background. An operator
// reads its input, and for each output pixel whose neighbourhood satisfies
// the operator's condition writes fillColor; every other output pixel keeps
// the value the caller put there. The input and output must be distinct
// images. Element cells that fall outside the image are clipped: they never
// match for dilation and are trivially satisfied for erosion.
package morphology

import (
	"fmt"

	"binmorph/internal/models"
	"binmorph/pkg/raster"
)

// Threshold binarises img in place: pixels below level become 0, all others
// become 255.
func Threshold(img *raster.Image, level int) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", raster.ErrInvalidArgument)
	}
	if err := img.CheckBounds(); err != nil {
		return err
	}
	if err := raster.CheckColor("threshold level", level); err != nil {
		return err
	}

	for y := 0; y < img.Height(); y++ {
		for x := 0; x < img.Width(); x++ {
			if int(img.At(y, x)) < level {
				img.Set(y, x, raster.Black)
			} else {
				img.Set(y, x, raster.White)
			}
		}
	}
	return nil
}

// Dilate sets out to fillColor wherever at least one active cell of se,
// aligned on its centre, covers a foreground pixel of in.
func Dilate(in, out *raster.Image, se *raster.StructuringElement, fillColor int) error {
	if err := validate(in, out, se, fillColor); err != nil {
		return err
	}
	dilate(in, out, se, uint8(fillColor))
	return nil
}

// Erode sets out to fillColor wherever every active cell of se that lands
// inside the image covers a foreground pixel of in.
func Erode(in, out *raster.Image, se *raster.StructuringElement, fillColor int) error {
	if err := validate(in, out, se, fillColor); err != nil {
		return err
	}
	erode(in, out, se, uint8(fillColor))
	return nil
}

// Open erodes in into a white scratch image, then dilates the scratch into
// out.
func Open(in, out *raster.Image, se *raster.StructuringElement, fillColor int) error {
	if err := validate(in, out, se, fillColor); err != nil {
		return err
	}
	scratch, err := scratchFor(in)
	if err != nil {
		return err
	}
	erode(in, scratch, se, uint8(fillColor))
	dilate(scratch, out, se, uint8(fillColor))
	return nil
}

// Close dilates in into a white scratch image, then erodes the scratch into
// out.
func Close(in, out *raster.Image, se *raster.StructuringElement, fillColor int) error {
	if err := validate(in, out, se, fillColor); err != nil {
		return err
	}
	scratch, err := scratchFor(in)
	if err != nil {
		return err
	}
	dilate(in, scratch, se, uint8(fillColor))
	erode(scratch, out, se, uint8(fillColor))
	return nil
}

// Apply runs the morphological operator op. Threshold is not accepted here
// because it works in place and takes a level instead of an element.
func Apply(op models.Operation, in, out *raster.Image, se *raster.StructuringElement, fillColor int) error {
	switch op {
	case models.Dilate:
		return Dilate(in, out, se, fillColor)
	case models.Erode:
		return Erode(in, out, se, fillColor)
	case models.Open:
		return Open(in, out, se, fillColor)
	case models.Close:
		return Close(in, out, se, fillColor)
	}
	return fmt.Errorf("%w: %v is not a morphological operation", raster.ErrInvalidArgument, op)
}

func dilate(in, out *raster.Image, se *raster.StructuringElement, fill uint8) {
	h, w := in.Height(), in.Width()
	cx, cy := se.CenterX(), se.CenterY()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			hit := false
			for ey := 0; ey < se.Height() && !hit; ey++ {
				iy := y + ey - cy
				if iy < 0 || iy >= h {
					continue
				}
				for ex := 0; ex < se.Width(); ex++ {
					ix := x + ex - cx
					if ix < 0 || ix >= w {
						continue
					}
					v := se.At(ey, ex)
					if v == raster.Black && in.At(iy, ix) == v {
						hit = true
						break
					}
				}
			}
			if hit {
				out.Set(y, x, fill)
			}
		}
	}
}

func erode(in, out *raster.Image, se *raster.StructuringElement, fill uint8) {
	h, w := in.Height(), in.Width()
	cx, cy := se.CenterX(), se.CenterY()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			overlap := true
			for ey := 0; ey < se.Height() && overlap; ey++ {
				iy := y + ey - cy
				if iy < 0 || iy >= h {
					continue
				}
				for ex := 0; ex < se.Width(); ex++ {
					ix := x + ex - cx
					if ix < 0 || ix >= w || !se.Active(ey, ex) {
						continue
					}
					if in.At(iy, ix) != raster.Black {
						overlap = false
						break
					}
				}
			}
			if overlap {
				out.Set(y, x, fill)
			}
		}
	}
}

func scratchFor(in *raster.Image) (*raster.Image, error) {
	return raster.NewImage(in.Height(), in.Width(), raster.White, raster.WithMaxDim(in.MaxDim()))
}

func validate(in, out *raster.Image, se *raster.StructuringElement, fillColor int) error {
	if in == nil || out == nil {
		return fmt.Errorf("%w: nil image", raster.ErrInvalidArgument)
	}
	if in == out {
		return fmt.Errorf("%w: input and output must be distinct images", raster.ErrInvalidArgument)
	}
	if se == nil {
		return fmt.Errorf("%w: nil structuring element", raster.ErrInvalidArgument)
	}
	if !in.SameSize(out) {
		return fmt.Errorf("%w: output %dx%d does not match input %dx%d", raster.ErrInvalidArgument,
			out.Height(), out.Width(), in.Height(), in.Width())
	}
	if err := in.CheckBounds(); err != nil {
		return err
	}
	if err := out.CheckBounds(); err != nil {
		return err
	}
	if !se.IsSquare() {
		return fmt.Errorf("%w: structuring element %dx%d is not square", raster.ErrInvalidArgument,
			se.Height(), se.Width())
	}
	if !se.IsOdd() {
		return fmt.Errorf("%w: structuring element size %d is even", raster.ErrInvalidArgument, se.Width())
	}
	return raster.CheckColor("fill color", fillColor)
}
