package coords

import (
	"testing"

	"mirror_go/internal/errors"
)

func TestRecordProtocolRoundTrip(t *testing.T) {
	for _, size := range []int{5, 9, 13, 19} {
		for c := 0; c < size; c++ {
			for r := 0; r < size; r++ {
				rec := string([]byte{byte('a' + c), byte('a' + r)})
				vertex, err := RecordToProtocol(size, rec)
				if err != nil {
					t.Fatalf("RecordToProtocol(%d, %q) error = %v", size, rec, err)
				}
				back, err := ProtocolToRecord(size, vertex)
				if err != nil {
					t.Fatalf("ProtocolToRecord(%d, %q) error = %v", size, vertex, err)
				}
				if back != rec {
					t.Fatalf("round trip %q -> %q -> %q on %d", rec, vertex, back, size)
				}
			}
		}
	}
}

func TestRecordToProtocolKnownPoints(t *testing.T) {
	cases := []struct {
		size int
		rec  string
		want string
	}{
		{19, "aa", "a19"},
		{19, "as", "a1"},
		{19, "dp", "d4"},
		{19, "pd", "q16"},
		{19, "ss", "t1"},
		{9, "ee", "e5"},
		{9, "ia", "j9"},
	}
	for _, tc := range cases {
		got, err := RecordToProtocol(tc.size, tc.rec)
		if err != nil {
			t.Fatalf("RecordToProtocol(%d, %q) error = %v", tc.size, tc.rec, err)
		}
		if got != tc.want {
			t.Fatalf("RecordToProtocol(%d, %q) = %q, want %q", tc.size, tc.rec, got, tc.want)
		}
	}
}

func TestRecordToProtocolOutOfRange(t *testing.T) {
	for _, rec := range []string{"ja", "aj", "tt", "a", "", "A!"} {
		if _, err := RecordToProtocol(9, rec); !errors.Is(err, errors.ErrOutOfRange) {
			t.Fatalf("RecordToProtocol(9, %q) error = %v, want ErrOutOfRange", rec, err)
		}
	}
}

func TestProtocolToGridRejectsBadVertices(t *testing.T) {
	for _, v := range []string{"i5", "k5", "a10", "a0", "pass", "5e", "e"} {
		if _, err := ProtocolToGrid(9, v); !errors.Is(err, errors.ErrOutOfRange) {
			t.Fatalf("ProtocolToGrid(9, %q) error = %v, want ErrOutOfRange", v, err)
		}
	}
}

func TestProtocolToGridIsCaseInsensitive(t *testing.T) {
	p, err := ProtocolToGrid(19, "Q16")
	if err != nil {
		t.Fatalf("ProtocolToGrid() error = %v", err)
	}
	if p != (Point{Row: 15, Col: 15}) {
		t.Fatalf("ProtocolToGrid(Q16) = %+v", p)
	}
	v, err := GridToProtocol(19, p)
	if err != nil {
		t.Fatalf("GridToProtocol() error = %v", err)
	}
	if v != "q16" {
		t.Fatalf("GridToProtocol() = %q, want q16", v)
	}
}

func TestInvalidBoardSize(t *testing.T) {
	if _, err := GridToProtocol(0, Point{}); !errors.Is(err, errors.ErrInvalidBoardSize) {
		t.Fatalf("GridToProtocol(0) error = %v", err)
	}
	if _, err := RecordToProtocol(MaxBoardSize+1, "aa"); !errors.Is(err, errors.ErrInvalidBoardSize) {
		t.Fatalf("RecordToProtocol(26) error = %v", err)
	}
}

func TestMirrorInvolutionAndFixedPoints(t *testing.T) {
	for size := 1; size <= MaxBoardSize; size++ {
		fixed := 0
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				p := Point{Row: r, Col: c}
				m := MirrorPoint(size, p)
				if !m.inside(size) {
					t.Fatalf("MirrorPoint(%d, %+v) = %+v is off board", size, p, m)
				}
				if MirrorPoint(size, m) != p {
					t.Fatalf("MirrorPoint is not an involution at %+v on %d", p, size)
				}
				if m == p {
					fixed++
				}
			}
		}
		want := 0
		if size%2 == 1 {
			want = 1
		}
		if fixed != want {
			t.Fatalf("size %d has %d fixed points, want %d", size, fixed, want)
		}
	}
}

func TestCenterPointOddBoard(t *testing.T) {
	p := CenterPoint(9)
	if p != (Point{Row: 4, Col: 4}) {
		t.Fatalf("CenterPoint(9) = %+v, want (4,4)", p)
	}
	v, err := GridToProtocol(9, p)
	if err != nil {
		t.Fatalf("GridToProtocol() error = %v", err)
	}
	if v != "e5" {
		t.Fatalf("tengen on 9x9 = %q, want e5", v)
	}
	if MirrorPoint(9, p) != p {
		t.Fatalf("tengen is not its own mirror")
	}
}

func TestCenterPointEvenBoardRoundsDown(t *testing.T) {
	p := CenterPoint(8)
	if p != (Point{Row: 3, Col: 3}) {
		t.Fatalf("CenterPoint(8) = %+v, want (3,3)", p)
	}
	v, _ := GridToProtocol(8, p)
	if v != "d4" {
		t.Fatalf("CenterPoint(8) vertex = %q, want d4", v)
	}
	if MirrorPoint(8, p) != (Point{Row: 4, Col: 4}) {
		t.Fatalf("MirrorPoint(8, centre) = %+v", MirrorPoint(8, p))
	}
}

func TestMirrorVertex(t *testing.T) {
	got, err := MirrorVertex(19, "D4")
	if err != nil {
		t.Fatalf("MirrorVertex() error = %v", err)
	}
	if got != "q16" {
		t.Fatalf("MirrorVertex(19, D4) = %q, want q16", got)
	}
	got, _ = MirrorVertex(9, "c7")
	if got != "g3" {
		t.Fatalf("MirrorVertex(9, c7) = %q, want g3", got)
	}
}
