package sim

import (
	"math"
	"sort"
)

// gridKey addresses one bin of the uniform neighbor grid.
type gridKey [3]int

// spatialGrid is a uniform hash grid rebuilt at every step boundary.
// Agent positions are immutable within a step, so lookups need no locking.
type spatialGrid struct {
	binEdge float64
	bins    map[gridKey][]Agent
}

func newSpatialGrid(binEdge float64) *spatialGrid {
	if binEdge <= 0 {
		binEdge = DefaultBinEdge
	}
	return &spatialGrid{
		binEdge: binEdge,
		bins:    make(map[gridKey][]Agent),
	}
}

func (g *spatialGrid) keyFor(p Vec3) gridKey {
	return gridKey{
		int(math.Floor(p[0] / g.binEdge)),
		int(math.Floor(p[1] / g.binEdge)),
		int(math.Floor(p[2] / g.binEdge)),
	}
}

func (g *spatialGrid) insert(a Agent) {
	key := g.keyFor(a.Position())
	g.bins[key] = append(g.bins[key], a)
}

// seal sorts every bin by UID so that neighbor enumeration within one bin
// is stable across rebuilds.
func (g *spatialGrid) seal() {
	for _, agents := range g.bins {
		sort.Slice(agents, func(i, j int) bool { return agents[i].UID() < agents[j].UID() })
	}
}

// forEachNeighbor calls fn for every agent within sqRadius of origin,
// excluding the agent identified by exclude. Bins are visited in ascending
// coordinate order.
func (g *spatialGrid) forEachNeighbor(origin Vec3, sqRadius float64, exclude UID, fn func(Agent, float64)) {
	if sqRadius <= 0 {
		return
	}
	radius := math.Sqrt(sqRadius)
	lo := g.keyFor(Vec3{origin[0] - radius, origin[1] - radius, origin[2] - radius})
	hi := g.keyFor(Vec3{origin[0] + radius, origin[1] + radius, origin[2] + radius})

	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				for _, a := range g.bins[gridKey{x, y, z}] {
					if a == nil || a.UID() == exclude {
						continue
					}
					sq := SquaredDistance(origin, a.Position())
					if sq <= sqRadius {
						fn(a, sq)
					}
				}
			}
		}
	}
}
