package api

import (
	"github.com/mr1hm/go-accident-alerts/internal/models"
	"github.com/mr1hm/go-accident-alerts/internal/view"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func toGeoJSON(markers []view.Marker) FeatureCollection {
	features := make([]Feature, 0, len(markers))

	for _, m := range markers {
		class := models.Classify(m.Severity)
		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{m.Lng, m.Lat},
			},
			Properties: map[string]any{
				"severity": m.Severity,
				"time":     m.Time,
				"location": m.Location,
				"color":    class.Color,
			},
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
