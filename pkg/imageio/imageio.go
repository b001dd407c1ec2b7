// Package imageio loads and saves raster.Image values. The format is chosen
// from the file extension: .pgm, .png, .jpg/.jpeg, .bmp and .tif/.tiff are
// supported. Colour sources are converted to gray on load.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"binmorph/pkg/raster"
)

// SaveOption customises how Save encodes an image.
type SaveOption func(*saveOptions)

type saveOptions struct {
	ascii   bool
	quality int
}

// WithASCII writes PGM files in the plain (P2) variant.
func WithASCII() SaveOption {
	return func(o *saveOptions) { o.ascii = true }
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) SaveOption {
	return func(o *saveOptions) { o.quality = q }
}

// SupportedExtensions lists the extensions Read and Save accept.
var SupportedExtensions = []string{".pgm", ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff"}

// IsSupported reports whether the path has a supported extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads path into a new image and reports whether it succeeded.
func Load(path string, opts ...raster.Option) (*raster.Image, bool) {
	img, err := Read(path, opts...)
	return img, err == nil
}

// Read reads path into a new image. Every error wraps raster.ErrLoadFailure.
func Read(path string, opts ...raster.Option) (*raster.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", raster.ErrLoadFailure, err)
	}
	defer f.Close()

	img, err := Decode(f, strings.ToLower(filepath.Ext(path)), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode reads an image in the format named by ext. An unknown or empty
// ext falls back to format sniffing. The header is checked against the
// dimension bound in opts before any pixel is allocated.
func Decode(r io.Reader, ext string, opts ...raster.Option) (*raster.Image, error) {
	var header bytes.Buffer
	cfg, err := decodeConfig(io.TeeReader(r, &header), ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", raster.ErrLoadFailure, err)
	}
	if err := raster.CheckSize(cfg.Height, cfg.Width, opts...); err != nil {
		return nil, fmt.Errorf("%w: %w", raster.ErrLoadFailure, err)
	}
	r = io.MultiReader(&header, r)

	var src image.Image
	switch ext {
	case ".pgm":
		src, err = DecodePGM(r)
	case ".png":
		src, err = png.Decode(r)
	case ".jpg", ".jpeg":
		src, err = jpeg.Decode(r)
	case ".bmp":
		src, err = bmp.Decode(r)
	case ".tif", ".tiff":
		src, err = tiff.Decode(r)
	default:
		src, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", raster.ErrLoadFailure, err)
	}

	img, err := raster.FromGray(toGray(src), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", raster.ErrLoadFailure, err)
	}
	return img, nil
}

func decodeConfig(r io.Reader, ext string) (image.Config, error) {
	switch ext {
	case ".pgm":
		return DecodePGMConfig(r)
	case ".png":
		return png.DecodeConfig(r)
	case ".jpg", ".jpeg":
		return jpeg.DecodeConfig(r)
	case ".bmp":
		return bmp.DecodeConfig(r)
	case ".tif", ".tiff":
		return tiff.DecodeConfig(r)
	}
	cfg, _, err := image.DecodeConfig(r)
	return cfg, err
}

// Save writes img to path, creating parent directories as needed.
func Save(path string, img *raster.Image, opts ...SaveOption) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", raster.ErrInvalidArgument)
	}
	if !IsSupported(path) {
		return fmt.Errorf("unsupported image format: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %v", err)
	}
	if err := Encode(file, strings.ToLower(filepath.Ext(path)), img, opts...); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %v", path, err)
	}
	return file.Close()
}

// Encode writes img in the format named by ext.
func Encode(w io.Writer, ext string, img *raster.Image, opts ...SaveOption) error {
	o := saveOptions{quality: 90}
	for _, opt := range opts {
		opt(&o)
	}

	g := img.ToGray()
	switch ext {
	case ".pgm":
		return EncodePGM(w, g, o.ascii)
	case ".png":
		return png.Encode(w, g)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, g, &jpeg.Options{Quality: o.quality})
	case ".bmp":
		return bmp.Encode(w, g)
	case ".tif", ".tiff":
		return tiff.Encode(w, g, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported image format: %q", ext)
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), src, b.Min, draw.Src)
	return g
}
