package cluster

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/buscluster/internal/geo"
)

func TestSpatialIndex_Build(t *testing.T) {
	points := []Point{
		pt("a", 0.001, 0.001),
		pt("b", 0.002, 0.002),
		pt("c", -0.005, -0.005),
		pt("d", 0.5, 0.5),
	}
	si := NewSpatialIndex(0.01)
	si.Build(points)

	total := 0
	for _, idxs := range si.Grid {
		total += len(idxs)
	}
	if total != len(points) {
		t.Errorf("expected %d indexed points, got %d", len(points), total)
	}
	if len(si.Grid) != 3 {
		t.Errorf("expected 3 occupied cells, got %d", len(si.Grid))
	}
}

func TestSpatialIndex_RegionQueryAcrossNegativeCells(t *testing.T) {
	// Points straddle the zero lines so the query crosses cell sign boundaries.
	points := []Point{
		pt("origin", 0, 0),
		pt("sw", -0.004, -0.004),
		pt("ne", 0.004, 0.004),
		pt("far", -0.02, 0.02),
	}
	si := NewSpatialIndex(0.01)
	si.Build(points)

	got := si.RegionQuery(points, 0, 0.01)
	sort.Ints(got)
	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("RegionQuery() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RegionQuery() = %v, want %v", got, want)
		}
	}
}

func TestCellKey_Unique(t *testing.T) {
	seen := make(map[int64][2]int64)
	for x := int64(-20); x <= 20; x++ {
		for y := int64(-20); y <= 20; y++ {
			k := cellKey(x, y)
			if prev, ok := seen[k]; ok {
				t.Fatalf("cellKey collision: (%d,%d) and (%d,%d) -> %d", x, y, prev[0], prev[1], k)
			}
			seen[k] = [2]int64{x, y}
		}
	}
}

func TestNeighbourIndex_GridMatchesLinearScan(t *testing.T) {
	points := []Point{
		pt("a", 10.000, 20.000),
		pt("b", 10.006, 20.004),
		pt("c", 10.012, 20.000),
		pt("d", 9.995, 19.990),
		pt("e", 10.100, 20.100),
	}
	grid := newNeighbourIndex(points, 0.01, geo.Planar{})
	scan := &linearScan{points: points, eps: 0.01, metric: geo.Planar{}}

	for i := range points {
		g := grid.RegionQuery(i)
		s := scan.RegionQuery(i)
		sort.Ints(g)
		sort.Ints(s)
		if len(g) != len(s) {
			t.Errorf("point %d: grid %v vs scan %v", i, g, s)
			continue
		}
		for j := range g {
			if g[j] != s[j] {
				t.Errorf("point %d: grid %v vs scan %v", i, g, s)
				break
			}
		}
	}
}

func TestNeighbourIndex_BoundaryIsInclusive(t *testing.T) {
	points := []Point{pt("a", 0, 0), pt("b", 0.01, 0), pt("c", 0, -0.01), pt("far", 0, 0.0101)}
	want := []int{0, 1, 2}

	grid := newNeighbourIndex(points, 0.01, geo.Planar{})
	scan := &linearScan{points: points, eps: 0.01, metric: geo.Planar{}}
	for name, idx := range map[string]neighbourIndex{"grid": grid, "scan": scan} {
		got := idx.RegionQuery(0)
		sort.Ints(got)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s neighbours of origin mismatch (-want +got):\n%s", name, diff)
		}
	}
}
