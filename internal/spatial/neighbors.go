// Package spatial resolves station neighborhoods from static coordinates
// and verifies flagged anomalies against neighbor trends.
package spatial

import (
	"math"
	"sort"

	"github.com/meteosentry/meteosentry/internal/store"
)

// earthRadiusKM is the mean Earth radius used for great-circle distances.
const earthRadiusKM = 6371.0

// Neighbor is one edge of the neighbor graph.
type Neighbor struct {
	StationID  string
	DistanceKM float64
}

// GraphOptions bounds which station pairs become neighbors.
type GraphOptions struct {
	RadiusKM float64
	// MaxElevationDiffM excludes pairs in different air masses; mountain
	// and valley stations legitimately disagree. Zero disables the screen.
	MaxElevationDiffM float64
}

// Graph is the precomputed neighbor adjacency for every station. Built
// once per run and never mutated afterward, so it may be shared freely
// across worker goroutines.
type Graph struct {
	neighbors map[string][]Neighbor
}

// BuildGraph computes pairwise great-circle distances across the full
// station set. O(n^2) precomputation; realistic networks are tens to low
// hundreds of stations.
func BuildGraph(stations []store.Station, opts GraphOptions) *Graph {
	g := &Graph{neighbors: make(map[string][]Neighbor, len(stations))}

	for i, a := range stations {
		var edges []Neighbor
		for j, b := range stations {
			if i == j {
				continue
			}
			if opts.MaxElevationDiffM > 0 && math.Abs(a.Elevation-b.Elevation) > opts.MaxElevationDiffM {
				continue
			}
			dist := Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
			if dist <= opts.RadiusKM {
				edges = append(edges, Neighbor{StationID: b.ID, DistanceKM: dist})
			}
		}
		sort.Slice(edges, func(x, y int) bool {
			if edges[x].DistanceKM != edges[y].DistanceKM {
				return edges[x].DistanceKM < edges[y].DistanceKM
			}
			return edges[x].StationID < edges[y].StationID
		})
		g.neighbors[a.ID] = edges
	}

	return g
}

// Neighbors returns the stations within the graph's radius of stationID,
// nearest first. An empty result is not an error; isolated stations
// simply have no spatial context.
func (g *Graph) Neighbors(stationID string) []Neighbor {
	return g.neighbors[stationID]
}

// Haversine returns the great-circle distance in kilometers between two
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKM * 2 * math.Asin(math.Sqrt(a))
}
