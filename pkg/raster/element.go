package raster

import (
	"fmt"
	"strings"
)

// StructuringElement is a small probe grid. Cells equal to Black are
// active; any other value is ignored by the morphology operators. The
// centre (CenterX, CenterY) is the cell aligned with the pixel under
// evaluation.
type StructuringElement struct {
	height  int
	width   int
	centerX int
	centerY int
	values  []uint8
}

// NewStructuringElement allocates a height x width element with every cell
// set to background and the given centre.
func NewStructuringElement(height, width, centerX, centerY, background int, opts ...Option) (*StructuringElement, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if err := checkDims("structuring element", height, width, o.maxDim); err != nil {
		return nil, err
	}
	if err := CheckColor("background", background); err != nil {
		return nil, err
	}
	if centerX < 0 || centerX >= width {
		return nil, fmt.Errorf("%w: centerX %d outside [0,%d)", ErrInvalidArgument, centerX, width)
	}
	if centerY < 0 || centerY >= height {
		return nil, fmt.Errorf("%w: centerY %d outside [0,%d)", ErrInvalidArgument, centerY, height)
	}

	se := &StructuringElement{
		height:  height,
		width:   width,
		centerX: centerX,
		centerY: centerY,
		values:  make([]uint8, height*width),
	}
	for i := range se.values {
		se.values[i] = uint8(background)
	}
	return se, nil
}

// DefaultElement returns an inactive 3x3 element centred on (1,1).
func DefaultElement() *StructuringElement {
	se, _ := NewStructuringElement(3, 3, 1, 1, White)
	return se
}

// Cross returns a size x size element whose middle row and column are
// active. For size 3 this is the classic four-neighbour cross.
func Cross(size int) (*StructuringElement, error) {
	se, err := centered(size)
	if err != nil {
		return nil, err
	}
	for i := 0; i < size; i++ {
		se.Set(se.centerY, i, Black)
		se.Set(i, se.centerX, Black)
	}
	return se, nil
}

// Square returns a size x size element with every cell active.
func Square(size int) (*StructuringElement, error) {
	se, err := centered(size)
	if err != nil {
		return nil, err
	}
	for i := range se.values {
		se.values[i] = Black
	}
	return se, nil
}

// Diamond returns a size x size element whose active cells lie within
// Manhattan distance size/2 of the centre.
func Diamond(size int) (*StructuringElement, error) {
	se, err := centered(size)
	if err != nil {
		return nil, err
	}
	r := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if abs(y-r)+abs(x-r) <= r {
				se.Set(y, x, Black)
			}
		}
	}
	return se, nil
}

// ParsePattern builds an element from rows of '#' (active) and '.'
// (inactive) cells. All rows must have the same length.
func ParsePattern(rows []string, centerX, centerY int) (*StructuringElement, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidArgument)
	}
	width := len(strings.TrimSpace(rows[0]))
	se, err := NewStructuringElement(len(rows), width, centerX, centerY, White)
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		row = strings.TrimSpace(row)
		if len(row) != width {
			return nil, fmt.Errorf("%w: pattern row %d has %d cells, want %d", ErrInvalidArgument, y, len(row), width)
		}
		for x, c := range row {
			switch c {
			case '#':
				se.Set(y, x, Black)
			case '.':
			default:
				return nil, fmt.Errorf("%w: pattern row %d has unexpected cell %q", ErrInvalidArgument, y, c)
			}
		}
	}
	return se, nil
}

func centered(size int) (*StructuringElement, error) {
	if size < 1 || size%2 == 0 {
		return nil, fmt.Errorf("%w: element size %d must be odd and positive", ErrInvalidArgument, size)
	}
	return NewStructuringElement(size, size, size/2, size/2, White)
}

// Height returns the number of rows.
func (se *StructuringElement) Height() int { return se.height }

// Width returns the number of columns.
func (se *StructuringElement) Width() int { return se.width }

// CenterX returns the column aligned with the evaluated pixel.
func (se *StructuringElement) CenterX() int { return se.centerX }

// CenterY returns the row aligned with the evaluated pixel.
func (se *StructuringElement) CenterY() int { return se.centerY }

// IsSquare reports whether height equals width.
func (se *StructuringElement) IsSquare() bool { return se.height == se.width }

// IsOdd reports whether both dimensions are odd.
func (se *StructuringElement) IsOdd() bool { return se.height%2 == 1 && se.width%2 == 1 }

// At returns the cell at row y, column x.
func (se *StructuringElement) At(y, x int) uint8 {
	if y < 0 || y >= se.height || x < 0 || x >= se.width {
		panic(fmt.Sprintf("raster: element cell (%d,%d) out of range %dx%d", y, x, se.height, se.width))
	}
	return se.values[y*se.width+x]
}

// Set writes the cell at row y, column x.
func (se *StructuringElement) Set(y, x int, v uint8) {
	if y < 0 || y >= se.height || x < 0 || x >= se.width {
		panic(fmt.Sprintf("raster: element cell (%d,%d) out of range %dx%d", y, x, se.height, se.width))
	}
	se.values[y*se.width+x] = v
}

// Active reports whether the cell at (y, x) takes part in matching.
func (se *StructuringElement) Active(y, x int) bool {
	return se.At(y, x) == Black
}

// ActiveCount returns the number of active cells.
func (se *StructuringElement) ActiveCount() int {
	n := 0
	for _, v := range se.values {
		if v == Black {
			n++
		}
	}
	return n
}

// String renders the element as '#'/'.' rows.
func (se *StructuringElement) String() string {
	var sb strings.Builder
	for y := 0; y < se.height; y++ {
		for x := 0; x < se.width; x++ {
			if se.Active(y, x) {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		if y < se.height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
