package imageio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
)

// maxPGMPixels caps the sample count DecodePGM allocates for.
const maxPGMPixels = 1 << 28

var errNotPGM = errors.New("not a PGM file")

func init() {
	image.RegisterFormat("pgm", "P5", DecodePGM, DecodePGMConfig)
	image.RegisterFormat("pgm", "P2", DecodePGM, DecodePGMConfig)
}

type pgmHeader struct {
	ascii  bool
	width  int
	height int
	maxval int
}

// DecodePGM reads a binary (P5) or plain (P2) PGM image. Samples are scaled
// to [0,255] when the file's maxval is smaller than 255.
func DecodePGM(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	if int64(h.width)*int64(h.height) > maxPGMPixels {
		return nil, fmt.Errorf("pgm: image %dx%d is too large", h.width, h.height)
	}

	img := image.NewGray(image.Rect(0, 0, h.width, h.height))
	if h.ascii {
		for i := range img.Pix {
			v, err := readInt(br)
			if err != nil {
				return nil, fmt.Errorf("pgm: reading sample %d: %v", i, err)
			}
			if v > h.maxval {
				return nil, fmt.Errorf("pgm: sample %d value %d exceeds maxval %d", i, v, h.maxval)
			}
			img.Pix[i] = uint8(v)
		}
	} else {
		if _, err := io.ReadFull(br, img.Pix); err != nil {
			return nil, fmt.Errorf("pgm: reading pixel data: %v", err)
		}
		for i, v := range img.Pix {
			if int(v) > h.maxval {
				return nil, fmt.Errorf("pgm: sample %d value %d exceeds maxval %d", i, v, h.maxval)
			}
		}
	}

	if h.maxval != 255 {
		for i, v := range img.Pix {
			img.Pix[i] = uint8(int(v) * 255 / h.maxval)
		}
	}
	return img, nil
}

// DecodePGMConfig returns the dimensions of a PGM image without reading
// its samples.
func DecodePGMConfig(r io.Reader) (image.Config, error) {
	h, err := readHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.GrayModel, Width: h.width, Height: h.height}, nil
}

// EncodePGM writes img as a PGM file with maxval 255. Plain (P2) output is
// used when ascii is set, binary (P5) otherwise.
func EncodePGM(w io.Writer, img *image.Gray, ascii bool) error {
	b := img.Bounds()
	bw := bufio.NewWriter(w)

	magic := "P5"
	if ascii {
		magic = "P2"
	}
	if _, err := fmt.Fprintf(bw, "%s\n%d %d\n255\n", magic, b.Dx(), b.Dy()); err != nil {
		return err
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		row := img.Pix[off : off+b.Dx()]
		if !ascii {
			if _, err := bw.Write(row); err != nil {
				return err
			}
			continue
		}
		// Plain PGM lines should stay under 70 characters
		lineLen := 0
		for _, v := range row {
			s := strconv.Itoa(int(v))
			if lineLen > 0 && lineLen+1+len(s) > 70 {
				bw.WriteByte('\n')
				lineLen = 0
			} else if lineLen > 0 {
				bw.WriteByte(' ')
				lineLen++
			}
			bw.WriteString(s)
			lineLen += len(s)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func readHeader(br *bufio.Reader) (pgmHeader, error) {
	var h pgmHeader
	magic := make([]byte, 2)
	if _, err := io.ReadFull(br, magic); err != nil {
		return h, errNotPGM
	}
	switch string(magic) {
	case "P5":
	case "P2":
		h.ascii = true
	default:
		return h, errNotPGM
	}

	fields := []*int{&h.width, &h.height, &h.maxval}
	names := []string{"width", "height", "maxval"}
	for i, f := range fields {
		v, err := readInt(br)
		if err != nil {
			return h, fmt.Errorf("pgm: reading %s: %v", names[i], err)
		}
		*f = v
	}
	if h.width < 1 || h.height < 1 {
		return h, fmt.Errorf("pgm: invalid dimensions %dx%d", h.width, h.height)
	}
	if h.maxval < 1 || h.maxval > 255 {
		return h, fmt.Errorf("pgm: unsupported maxval %d", h.maxval)
	}

	// Exactly one whitespace byte separates the header from binary data;
	// readInt has already consumed it.
	return h, nil
}

// readInt skips whitespace and '#' comments, then parses a decimal integer
// and consumes the single whitespace byte that terminates it.
func readInt(br *bufio.Reader) (int, error) {
	var c byte
	var err error
	for {
		c, err = br.ReadByte()
		if err != nil {
			return 0, err
		}
		if c == '#' {
			if _, err := br.ReadString('\n'); err != nil {
				return 0, err
			}
			continue
		}
		if !isSpace(c) {
			break
		}
	}

	n := 0
	digits := 0
	for {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("unexpected byte %q", c)
		}
		n = n*10 + int(c-'0')
		digits++
		if digits > 9 {
			return 0, errors.New("number too large")
		}
		c, err = br.ReadByte()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		if isSpace(c) {
			return n, nil
		}
		if c == '#' {
			if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
				return 0, err
			}
			return n, nil
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
