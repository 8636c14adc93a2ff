// Package sampler reduces a facility set to a bounded, spatially spread
// subset for display.
package sampler

import (
	"math"
	"slices"

	"github.com/sells-group/carpark-cli/internal/geo"
	"github.com/sells-group/carpark-cli/internal/model"
)

// Sample returns at most limit facilities. Sets that already fit are
// returned unchanged. Larger sets are spread over a square grid on bounds:
// each cell contributes its best-availability candidates up to a per-cell
// quota, and any shortfall is backfilled by availability.
func Sample(candidates []model.Facility, bounds geo.Bounds, limit int) []model.Facility {
	if limit <= 0 {
		return nil
	}
	if len(candidates) <= limit {
		return candidates
	}

	side := int(math.Ceil(math.Sqrt(float64(limit))))
	cells := side * side
	quota := (limit + cells - 1) / cells

	g := newGrid(bounds, side)
	buckets := make([][]int, cells)
	var outside []int
	for i, f := range candidates {
		c, ok := g.cell(f.Lat, f.Lng)
		if !ok {
			outside = append(outside, i)
			continue
		}
		buckets[c] = append(buckets[c], i)
	}

	type pick struct {
		idx  int
		rank int
	}
	var picks []pick
	chosen := make([]bool, len(candidates))
	for _, bucket := range buckets {
		byAvailability(candidates, bucket)
		for rank, idx := range bucket[:min(quota, len(bucket))] {
			picks = append(picks, pick{idx: idx, rank: rank})
			chosen[idx] = true
		}
	}

	// Every cell's first choice precedes any cell's second choice, so
	// truncation drops depth before spread.
	slices.SortStableFunc(picks, func(a, b pick) int {
		if a.rank != b.rank {
			return a.rank - b.rank
		}
		return candidates[b.idx].AvailableLots - candidates[a.idx].AvailableLots
	})

	out := make([]model.Facility, 0, limit)
	for _, p := range picks {
		out = append(out, candidates[p.idx])
	}

	if len(out) < limit {
		rest := make([]int, 0, len(candidates)-len(out))
		for i := range candidates {
			if !chosen[i] {
				rest = append(rest, i)
			}
		}
		byAvailability(candidates, rest)
		for _, idx := range rest {
			if len(out) == limit {
				break
			}
			out = append(out, candidates[idx])
		}
	}

	return out[:min(limit, len(out))]
}

// byAvailability sorts indexes by available lots, most first, keeping
// input order on ties.
func byAvailability(candidates []model.Facility, idx []int) {
	slices.SortStableFunc(idx, func(a, b int) int {
		return candidates[b].AvailableLots - candidates[a].AvailableLots
	})
}

type grid struct {
	bounds       geo.Bounds
	side         int
	cellW, cellH float64
}

func newGrid(b geo.Bounds, side int) grid {
	if b.IsEmpty() {
		return grid{bounds: b, side: side}
	}
	return grid{
		bounds: b,
		side:   side,
		cellW:  (b.MaxLng() - b.MinLng()) / float64(side),
		cellH:  (b.MaxLat() - b.MinLat()) / float64(side),
	}
}

// cell returns the row-major cell index for a coordinate. Points on the
// far edges belong to the last row or column.
func (g grid) cell(lat, lng float64) (int, bool) {
	if g.bounds.IsEmpty() || !g.bounds.Contains(lat, lng) {
		return 0, false
	}
	col := g.index(lng-g.bounds.MinLng(), g.cellW)
	row := g.index(lat-g.bounds.MinLat(), g.cellH)
	return row*g.side + col, true
}

func (g grid) index(offset, size float64) int {
	if size <= 0 {
		return 0
	}
	return min(int(offset/size), g.side-1)
}
