package station

import (
	"encoding/json"
	"os"

	"github.com/taxipark/station-dispatch/internal/geo"
)

// Station is a named reference point drivers queue at while idle.
type Station struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// DefaultStation is used when the station file is missing or unreadable,
// so dispatch keeps working with a single shared queue.
var DefaultStation = Station{Name: "Markaz", Lat: 41.3111, Lon: 69.2797}

// Index holds the static station list and answers nearest-station queries.
type Index struct {
	stations []Station
}

// NewIndex builds an index over the given stations. An empty list falls
// back to the default station.
func NewIndex(stations []Station) *Index {
	if len(stations) == 0 {
		stations = []Station{DefaultStation}
	}
	return &Index{stations: stations}
}

// Load reads a JSON station file ([{"name": ..., "lat": ..., "lon": ...}]).
// A missing or corrupt file degrades to the default station; the error is
// returned so callers can log it, but the index is always usable.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewIndex(nil), err
	}
	var stations []Station
	if err := json.Unmarshal(data, &stations); err != nil {
		return NewIndex(nil), err
	}
	return NewIndex(stations), nil
}

// Nearest returns the station closest to the given point and the
// straight-line distance to it in kilometers.
func (i *Index) Nearest(lat, lon float64) (Station, float64) {
	best := i.stations[0]
	bestDist := geo.HaversineKM(lat, lon, best.Lat, best.Lon)
	for _, s := range i.stations[1:] {
		if d := geo.HaversineKM(lat, lon, s.Lat, s.Lon); d < bestDist {
			best = s
			bestDist = d
		}
	}
	return best, bestDist
}

// All returns the full station list.
func (i *Index) All() []Station {
	return i.stations
}
