package models

import "time"

// TrafficRecord is one sensor observation as delivered by a source. The
// coordinates stay in their source text form until the pipeline coerces them.
type TrafficRecord struct {
	Time      time.Time `json:"time"`
	Longitude string    `json:"longitude"`
	Latitude  string    `json:"latitude"`
	Class     string    `json:"class"`
	Month     int       `json:"month"`
	Count     int64     `json:"count"`
}

// LocationCount is one row of an aggregated result.
type LocationCount struct {
	Location
	Count int64 `json:"count"`
}

// AggregateStats describes how many records a query touched.
type AggregateStats struct {
	Scanned  int64 `json:"scanned"`
	Rejected int64 `json:"rejected"`
	Matched  int64 `json:"matched"`
	Total    int64 `json:"total"`
}

// AggregatedResult is ordered by count descending, then longitude and latitude.
type AggregatedResult struct {
	Locations []LocationCount `json:"locations"`
	Stats     AggregateStats  `json:"stats"`
}

// TopN returns at most n of the highest-count locations.
func (r *AggregatedResult) TopN(n int) []LocationCount {
	if r == nil || n <= 0 {
		return nil
	}
	if n > len(r.Locations) {
		n = len(r.Locations)
	}
	out := make([]LocationCount, n)
	copy(out, r.Locations[:n])
	return out
}

func (r *AggregatedResult) Empty() bool {
	return r == nil || len(r.Locations) == 0
}
