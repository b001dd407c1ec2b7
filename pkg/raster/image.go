// Package raster provides the data model for binary morphology: 8-bit
// grayscale images and square structuring elements.
package raster

import (
	"errors"
	"fmt"
	"image"
)

const (
	// Black is the foreground (active) intensity.
	Black = 0

	// White is the background intensity.
	White = 255

	// DefaultMaxDim is the largest height or width accepted unless a
	// different bound is passed with WithMaxDim.
	DefaultMaxDim = 800
)

var (
	// ErrInvalidArgument reports a violated precondition: a dimension out of
	// range, a colour outside [0,255], a misplaced centre, or mismatched
	// image sizes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLoadFailure reports that a raster file could not be read.
	ErrLoadFailure = errors.New("load failure")
)

// Option customises image and structuring element construction.
type Option func(*options)

type options struct {
	maxDim int
}

// WithMaxDim overrides DefaultMaxDim for the value being constructed.
func WithMaxDim(n int) Option {
	return func(o *options) {
		o.maxDim = n
	}
}

func buildOptions(opts []Option) (options, error) {
	o := options{maxDim: DefaultMaxDim}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxDim < 1 {
		return o, fmt.Errorf("%w: max dimension %d must be positive", ErrInvalidArgument, o.maxDim)
	}
	return o, nil
}

// Image is a row-major grid of 8-bit intensities. The backing array is owned
// by the Image and is never shared with another Image.
type Image struct {
	// height and width are the active dimensions
	height int
	width  int

	// maxDim is the capacity bound checked at construction
	maxDim int

	pix []uint8
}

// NewImage allocates a height x width image with every pixel set to
// background.
func NewImage(height, width, background int, opts ...Option) (*Image, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if err := checkDims("image", height, width, o.maxDim); err != nil {
		return nil, err
	}
	if err := CheckColor("background", background); err != nil {
		return nil, err
	}

	img := &Image{
		height: height,
		width:  width,
		maxDim: o.maxDim,
		pix:    make([]uint8, height*width),
	}
	img.Fill(uint8(background))
	return img, nil
}

// DefaultImage returns a 50x50 white image.
func DefaultImage() *Image {
	img, _ := NewImage(50, 50, White)
	return img
}

// FromGray copies an *image.Gray into a new Image. The bounds of src are
// translated so that its minimum point becomes (0,0).
func FromGray(src *image.Gray, opts ...Option) (*Image, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source image", ErrInvalidArgument)
	}
	b := src.Bounds()
	img, err := NewImage(b.Dy(), b.Dx(), White, opts...)
	if err != nil {
		return nil, err
	}
	for y := 0; y < img.height; y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(img.pix[y*img.width:(y+1)*img.width], src.Pix[off:off+img.width])
	}
	return img, nil
}

// ToGray returns a copy of the image as an *image.Gray.
func (img *Image) ToGray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, img.width, img.height))
	copy(g.Pix, img.pix)
	return g
}

// Height returns the number of rows.
func (img *Image) Height() int { return img.height }

// Width returns the number of columns.
func (img *Image) Width() int { return img.width }

// MaxDim returns the capacity bound the image was created with.
func (img *Image) MaxDim() int { return img.maxDim }

// In reports whether (y, x) addresses a pixel of the image.
func (img *Image) In(y, x int) bool {
	return y >= 0 && y < img.height && x >= 0 && x < img.width
}

// At returns the pixel at row y, column x. It panics if (y, x) is out of
// range.
func (img *Image) At(y, x int) uint8 {
	if !img.In(y, x) {
		panic(fmt.Sprintf("raster: pixel (%d,%d) out of range %dx%d", y, x, img.height, img.width))
	}
	return img.pix[y*img.width+x]
}

// Set writes the pixel at row y, column x. It panics if (y, x) is out of
// range.
func (img *Image) Set(y, x int, v uint8) {
	if !img.In(y, x) {
		panic(fmt.Sprintf("raster: pixel (%d,%d) out of range %dx%d", y, x, img.height, img.width))
	}
	img.pix[y*img.width+x] = v
}

// Fill sets every pixel to v.
func (img *Image) Fill(v uint8) {
	for i := range img.pix {
		img.pix[i] = v
	}
}

// Pix returns a copy of the pixels in row-major order.
func (img *Image) Pix() []uint8 {
	out := make([]uint8, len(img.pix))
	copy(out, img.pix)
	return out
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	c := *img
	c.pix = make([]uint8, len(img.pix))
	copy(c.pix, img.pix)
	return &c
}

// SameSize reports whether both images have identical dimensions.
func (img *Image) SameSize(other *Image) bool {
	return other != nil && img.height == other.height && img.width == other.width
}

// Equal reports whether both images have the same dimensions and pixels.
func (img *Image) Equal(other *Image) bool {
	if !img.SameSize(other) {
		return false
	}
	for i, v := range img.pix {
		if other.pix[i] != v {
			return false
		}
	}
	return true
}

// Count returns the number of pixels equal to v.
func (img *Image) Count(v uint8) int {
	n := 0
	for _, p := range img.pix {
		if p == v {
			n++
		}
	}
	return n
}

// CheckBounds verifies that the image does not exceed its capacity bound.
func (img *Image) CheckBounds() error {
	return checkDims("image", img.height, img.width, img.maxDim)
}

// CheckColor verifies that a colour or level lies in [0,255].
func CheckColor(name string, v int) error {
	if v < 0 || v > 255 {
		return fmt.Errorf("%w: %s %d outside [0,255]", ErrInvalidArgument, name, v)
	}
	return nil
}

// CheckSize reports whether a height x width image fits the bound selected
// by opts, without allocating it.
func CheckSize(height, width int, opts ...Option) error {
	o, err := buildOptions(opts)
	if err != nil {
		return err
	}
	return checkDims("image", height, width, o.maxDim)
}

func checkDims(what string, height, width, maxDim int) error {
	if height < 1 || width < 1 {
		return fmt.Errorf("%w: %s dimensions %dx%d must be positive", ErrInvalidArgument, what, height, width)
	}
	if height > maxDim || width > maxDim {
		return fmt.Errorf("%w: %s dimensions %dx%d exceed %d", ErrInvalidArgument, what, height, width, maxDim)
	}
	return nil
}
