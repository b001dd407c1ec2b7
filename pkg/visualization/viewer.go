package visualization

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"binmorph/pkg/imageio"
	"binmorph/pkg/raster"
)

// Viewer renders binary images for inspection: as text for terminals and
// as upscaled raster previews for small images that are hard to see at
// native size.
type Viewer struct {
	// img is the image being viewed
	img *raster.Image

	// foreground and background are the runes used by Render
	foreground rune
	background rune
}

// NewViewer creates a viewer over img. The image is not copied; callers
// must not modify it while the viewer is in use.
func NewViewer(img *raster.Image) *Viewer {
	return &Viewer{
		img:        img,
		foreground: '#',
		background: '.',
	}
}

// SetRunes changes the characters used for foreground and background
func (v *Viewer) SetRunes(foreground, background rune) {
	v.foreground = foreground
	v.background = background
}

// Render returns the image as text, one line per row. Pixels equal to 0
// use the foreground rune, pixels equal to 255 the background rune, and any
// other value '+', which makes fill colours visible.
func (v *Viewer) Render() string {
	var sb strings.Builder
	for y := 0; y < v.img.Height(); y++ {
		for x := 0; x < v.img.Width(); x++ {
			switch v.img.At(y, x) {
			case raster.Black:
				sb.WriteRune(v.foreground)
			case raster.White:
				sb.WriteRune(v.background)
			default:
				sb.WriteRune('+')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteTo writes Render's output to w
func (v *Viewer) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, v.Render())
	return int64(n), err
}

// ExtractRegion copies a rectangular region of the image into a new image
func (v *Viewer) ExtractRegion(startY, startX, height, width int) (*raster.Image, error) {
	// Validate parameters
	if startX < 0 || startY < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}

	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}

	if startY+height > v.img.Height() || startX+width > v.img.Width() {
		return nil, fmt.Errorf("region extends beyond image boundaries")
	}

	region, err := raster.NewImage(height, width, raster.White, raster.WithMaxDim(v.img.MaxDim()))
	if err != nil {
		return nil, err
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			region.Set(y, x, v.img.At(startY+y, startX+x))
		}
	}

	return region, nil
}

// Scaled returns the image enlarged by an integer factor with
// nearest-neighbour sampling, so binary edges stay sharp
func (v *Viewer) Scaled(factor int) (*image.Gray, error) {
	if factor < 1 {
		return nil, fmt.Errorf("scale factor must be at least 1, got %d", factor)
	}

	src := v.img.ToGray()
	dst := image.NewGray(image.Rect(0, 0, v.img.Width()*factor, v.img.Height()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// SavePreview writes an upscaled copy of the image. The format follows the
// file extension, as for imageio.Save.
func (v *Viewer) SavePreview(filename string, factor int) error {
	scaled, err := v.Scaled(factor)
	if err != nil {
		return err
	}

	// Upscaled previews may exceed the working bound of the source image
	b := scaled.Bounds()
	maxDim := b.Dx()
	if b.Dy() > maxDim {
		maxDim = b.Dy()
	}
	img, err := raster.FromGray(scaled, raster.WithMaxDim(maxDim))
	if err != nil {
		return err
	}
	return imageio.Save(filepath.Clean(filename), img)
}
