package models

// FeatureCollection is a GeoJSON (RFC 7946) collection of request points.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
	// Sample marks placeholder data served in local mode when the store failed.
	Sample bool `json:"sample,omitempty"`
}

type Feature struct {
	Type       string            `json:"type"`
	Geometry   Point             `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

// Point coordinates are [longitude, latitude].
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type FeatureProperties struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// NewFeatureCollection converts located records; records without a location
// are skipped.
func NewFeatureCollection(records []*Record) *FeatureCollection {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(records))}
	for _, r := range records {
		if r.Location == nil {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Point{
				Type:        "Point",
				Coordinates: [2]float64{r.Location.Lng, r.Location.Lat},
			},
			Properties: FeatureProperties{ID: int64(r.ID), Title: r.Title},
		})
	}
	return fc
}

// SampleFeatureCollection is the placeholder map served in local mode when
// requests cannot be loaded.
func SampleFeatureCollection() *FeatureCollection {
	fc := NewFeatureCollection([]*Record{
		{ID: 1, Title: "Pothole on Main Street", Location: &Location{Lat: 44.0521, Lng: -123.0868}},
		{ID: 2, Title: "Broken streetlight", Location: &Location{Lat: 44.0462, Lng: -123.0220}},
		{ID: 3, Title: "Overflowing bin at the park", Location: &Location{Lat: 44.0582, Lng: -123.0995}},
	})
	fc.Sample = true
	return fc
}
