package sampler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/carpark-cli/internal/geo"
	"github.com/sells-group/carpark-cli/internal/model"
)

var viewport = geo.NewBounds(1.30, 103.80, 1.39, 103.89)

// lattice returns an n x n grid of facilities centred in equal slices of viewport.
func lattice(n int) []model.Facility {
	step := 0.09 / float64(n)
	out := make([]model.Facility, 0, n*n)
	for r := range n {
		for c := range n {
			out = append(out, model.Facility{
				ID:            fmt.Sprintf("R%dC%d", r, c),
				Lat:           1.30 + (float64(r)+0.5)*step,
				Lng:           103.80 + (float64(c)+0.5)*step,
				AvailableLots: (r*n + c) % 37,
			})
		}
	}
	return out
}

func cellsOf(t *testing.T, fs []model.Facility, limit int) map[int]int {
	t.Helper()
	side := 1
	for side*side < limit {
		side++
	}
	g := newGrid(viewport, side)
	counts := map[int]int{}
	for _, f := range fs {
		c, ok := g.cell(f.Lat, f.Lng)
		require.True(t, ok, f.ID)
		counts[c]++
	}
	return counts
}

func TestSample_UnderCapUnchanged(t *testing.T) {
	in := lattice(5)
	got := Sample(in, viewport, 25)
	assert.Equal(t, in, got)

	got = Sample(in, viewport, 100)
	assert.Equal(t, in, got)
}

func TestSample_ExactCap(t *testing.T) {
	in := lattice(10)
	for _, limit := range []int{1, 7, 20, 60, 64, 99} {
		t.Run(fmt.Sprint(limit), func(t *testing.T) {
			got := Sample(in, viewport, limit)
			require.Len(t, got, limit)

			seen := map[string]bool{}
			for _, f := range got {
				assert.False(t, seen[f.ID], "duplicate %s", f.ID)
				seen[f.ID] = true
			}
		})
	}
}

func TestSample_HundredInGridCapSixty(t *testing.T) {
	in := lattice(10)
	got := Sample(in, viewport, 60)
	require.Len(t, got, 60)

	// Sixty-four occupied cells with a quota of one: every pick comes from a
	// different cell.
	counts := cellsOf(t, got, 60)
	assert.Len(t, counts, 60)
	for cell, n := range counts {
		assert.Equal(t, 1, n, "cell %d", cell)
	}
}

func TestSample_EveryOccupiedCellRepresented(t *testing.T) {
	in := lattice(10)
	occupied := cellsOf(t, in, 64)

	got := Sample(in, viewport, 64)
	require.Len(t, got, 64)
	assert.Len(t, cellsOf(t, got, 64), len(occupied))
}

func TestSample_PrefersAvailabilityWithinCell(t *testing.T) {
	in := []model.Facility{
		{ID: "low", Lat: 1.301, Lng: 103.801, AvailableLots: 1},
		{ID: "high", Lat: 1.302, Lng: 103.802, AvailableLots: 90},
		{ID: "mid", Lat: 1.303, Lng: 103.803, AvailableLots: 40},
		{ID: "far", Lat: 1.389, Lng: 103.889, AvailableLots: 0},
	}
	// cap 2 -> 2x2 grid, quota 1: best of the crowded cell plus the lone far one.
	got := Sample(in, viewport, 2)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []string{"high", "far"}, ids(got))
}

func TestSample_BackfillsByAvailability(t *testing.T) {
	// Everything in one cell: the first pass yields one pick per quota and the
	// rest comes from the backfill, highest availability first.
	in := []model.Facility{
		{ID: "a", Lat: 1.301, Lng: 103.801, AvailableLots: 5},
		{ID: "b", Lat: 1.302, Lng: 103.802, AvailableLots: 50},
		{ID: "c", Lat: 1.303, Lng: 103.803, AvailableLots: 20},
		{ID: "d", Lat: 1.304, Lng: 103.804, AvailableLots: 30},
		{ID: "e", Lat: 1.305, Lng: 103.805, AvailableLots: 10},
	}
	got := Sample(in, viewport, 4)
	assert.Equal(t, []string{"b", "d", "c", "e"}, ids(got))
}

func TestSample_OutsideBoundsOnlyBackfilled(t *testing.T) {
	in := []model.Facility{
		{ID: "in", Lat: 1.31, Lng: 103.81, AvailableLots: 1},
		{ID: "out-best", Lat: 1.45, Lng: 104.0, AvailableLots: 99},
		{ID: "out", Lat: 1.20, Lng: 103.7, AvailableLots: 3},
	}
	got := Sample(in, viewport, 2)
	assert.Equal(t, []string{"in", "out-best"}, ids(got))
}

func TestSample_EdgeCases(t *testing.T) {
	in := lattice(3)
	assert.Nil(t, Sample(in, viewport, 0))
	assert.Nil(t, Sample(in, viewport, -1))
	assert.Empty(t, Sample(nil, viewport, 10))

	// Empty bounds degrade to a pure availability ranking.
	got := Sample(in, geo.Bounds{}, 3)
	require.Len(t, got, 3)
	assert.GreaterOrEqual(t, got[0].AvailableLots, got[1].AvailableLots)
	assert.GreaterOrEqual(t, got[1].AvailableLots, got[2].AvailableLots)
}

func TestSample_FarEdgeInLastCell(t *testing.T) {
	g := newGrid(viewport, 4)
	c, ok := g.cell(1.39, 103.89)
	require.True(t, ok)
	assert.Equal(t, 15, c)

	c, ok = g.cell(1.30, 103.80)
	require.True(t, ok)
	assert.Equal(t, 0, c)
}

func ids(fs []model.Facility) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}
