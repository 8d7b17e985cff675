// Package coords converts between the two coordinate encodings used on the
// board: GTP vertices ("d4") and SGF points ("dp"), and does the grid
// arithmetic behind the mirror strategy.
package coords

import (
	"fmt"
	"strconv"
	"strings"

	"mirror_go/internal/errors"
)

// columnLetters is the GTP column alphabet. "I" is skipped so it is never
// confused with "1" or "J".
const columnLetters = "abcdefghjklmnopqrstuvwxyz"

const MaxBoardSize = len(columnLetters)

// Point is a 0-based grid position. Row 0 is GTP row 1, Col 0 is column "a".
type Point struct {
	Row int
	Col int
}

func ValidBoardSize(size int) bool {
	return size >= 1 && size <= MaxBoardSize
}

func (p Point) inside(size int) bool {
	return p.Row >= 0 && p.Row < size && p.Col >= 0 && p.Col < size
}

// RecordToProtocol turns an SGF point into a GTP vertex on a board of the
// given size. The SGF row counts from the top, the GTP row from the bottom.
func RecordToProtocol(size int, rec string) (string, error) {
	if !ValidBoardSize(size) {
		return "", fmt.Errorf("%w: %d", errors.ErrInvalidBoardSize, size)
	}
	if len(rec) != 2 {
		return "", fmt.Errorf("%w: malformed record point %q", errors.ErrOutOfRange, rec)
	}
	col := int(rec[0]) - 'a'
	row := size - (int(rec[1]) - 'a')
	if col < 0 || col >= size || row < 1 || row > size {
		return "", fmt.Errorf("%w: record point %q on %dx%d", errors.ErrOutOfRange, rec, size, size)
	}
	return string(columnLetters[col]) + strconv.Itoa(row), nil
}

// ProtocolToRecord is the inverse of RecordToProtocol.
func ProtocolToRecord(size int, vertex string) (string, error) {
	p, err := ProtocolToGrid(size, vertex)
	if err != nil {
		return "", err
	}
	return string([]byte{byte('a' + p.Col), byte('a' + size - 1 - p.Row)}), nil
}

func ProtocolToGrid(size int, vertex string) (Point, error) {
	if !ValidBoardSize(size) {
		return Point{}, fmt.Errorf("%w: %d", errors.ErrInvalidBoardSize, size)
	}
	v := strings.ToLower(strings.TrimSpace(vertex))
	if len(v) < 2 {
		return Point{}, fmt.Errorf("%w: malformed vertex %q", errors.ErrOutOfRange, vertex)
	}
	col := strings.IndexByte(columnLetters, v[0])
	row, err := strconv.Atoi(v[1:])
	if col < 0 || err != nil {
		return Point{}, fmt.Errorf("%w: malformed vertex %q", errors.ErrOutOfRange, vertex)
	}
	p := Point{Row: row - 1, Col: col}
	if !p.inside(size) {
		return Point{}, fmt.Errorf("%w: vertex %q on %dx%d", errors.ErrOutOfRange, vertex, size, size)
	}
	return p, nil
}

func GridToProtocol(size int, p Point) (string, error) {
	if !ValidBoardSize(size) {
		return "", fmt.Errorf("%w: %d", errors.ErrInvalidBoardSize, size)
	}
	if !p.inside(size) {
		return "", fmt.Errorf("%w: point (%d,%d) on %dx%d", errors.ErrOutOfRange, p.Row, p.Col, size, size)
	}
	return string(columnLetters[p.Col]) + strconv.Itoa(p.Row+1), nil
}

// MirrorPoint reflects p through the centre of the board.
func MirrorPoint(size int, p Point) Point {
	return Point{Row: size - 1 - p.Row, Col: size - 1 - p.Col}
}

// CenterPoint is tengen. On even boards there is no true centre and this
// rounds down towards row 1 and column "a".
func CenterPoint(size int) Point {
	c := (size - 1) / 2
	return Point{Row: c, Col: c}
}

// MirrorVertex reflects a GTP vertex through the centre of the board.
func MirrorVertex(size int, vertex string) (string, error) {
	p, err := ProtocolToGrid(size, vertex)
	if err != nil {
		return "", err
	}
	return GridToProtocol(size, MirrorPoint(size, p))
}
