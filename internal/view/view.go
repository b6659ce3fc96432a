// Package view derives display-ready aggregates from a snapshot of alerts.
// Nothing here feeds back into delta detection or escalation.
package view

import (
	"fmt"
	"time"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

const (
	PlaceholderImage   = "/placeholder.jpg"
	PendingLocation    = "Location Pending"
	UnknownLocation    = "Unknown"
	highSeverityBanner = "HIGH SEVERITY ACCIDENT DETECTED"
)

type Filter string

const (
	FilterAll    Filter = "All"
	FilterHigh   Filter = "High"
	FilterMedium Filter = "Medium"
	FilterLow    Filter = "Low"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case FilterAll, FilterHigh, FilterMedium, FilterLow:
		return f, nil
	case "":
		return FilterAll, nil
	default:
		return "", fmt.Errorf("unknown severity filter: %q", s)
	}
}

func (f Filter) Match(a models.Alert) bool {
	return f == FilterAll || a.Severity() == string(f)
}

// Summary counts alerts by exact severity label. Alerts with any other label
// are only reflected in Total and Unclassified.
type Summary struct {
	Total        int `json:"total"`
	High         int `json:"high"`
	Medium       int `json:"medium"`
	Low          int `json:"low"`
	Unclassified int `json:"unclassified"`
}

type Row struct {
	Severity  string `json:"severity"`
	Time      string `json:"time"`
	Location  string `json:"location"`
	Image     string `json:"image"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
	Icon      string `json:"icon"`
}

type Marker struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Severity string  `json:"severity"`
	Time     string  `json:"time"`
	Location string  `json:"location"`
}

type State struct {
	Summary   Summary   `json:"summary"`
	Filter    Filter    `json:"filter"`
	Rows      []Row     `json:"rows"`
	Markers   []Marker  `json:"markers"`
	Banner    bool      `json:"banner"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Build computes the full presentation state. Rows honour the filter and are
// newest first; summary, markers and banner always cover every alert.
func Build(alerts []models.Alert, filter Filter, fetchedAt time.Time) State {
	st := State{
		Summary:   Summarize(alerts),
		Filter:    filter,
		Rows:      make([]Row, 0, len(alerts)),
		Markers:   MapMarkers(alerts),
		Banner:    BannerActive(alerts),
		FetchedAt: fetchedAt,
	}

	for i := len(alerts) - 1; i >= 0; i-- {
		a := alerts[i]
		if !filter.Match(a) {
			continue
		}
		st.Rows = append(st.Rows, toRow(a))
	}

	return st
}

func Summarize(alerts []models.Alert) Summary {
	s := Summary{Total: len(alerts)}
	for _, a := range alerts {
		sev, ok := models.ParseSeverity(a.Severity())
		if !ok {
			s.Unclassified++
			continue
		}
		switch sev {
		case models.SeverityHigh:
			s.High++
		case models.SeverityMedium:
			s.Medium++
		case models.SeverityLow:
			s.Low++
		}
	}
	return s
}

// MapMarkers keeps only alerts with valid coordinates.
func MapMarkers(alerts []models.Alert) []Marker {
	markers := make([]Marker, 0, len(alerts))
	for _, a := range alerts {
		lat, lng, ok := a.Coordinates()
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			Lat:      lat,
			Lng:      lng,
			Severity: a.Severity(),
			Time:     a.Time(),
			Location: orDefault(a.LocationText(), UnknownLocation),
		})
	}
	return markers
}

// BannerActive reports whether the newest alert is High. It is a function of
// the current view, so it stays lit for as long as that holds.
func BannerActive(alerts []models.Alert) bool {
	if len(alerts) == 0 {
		return false
	}
	return alerts[len(alerts)-1].IsHigh()
}

func toRow(a models.Alert) Row {
	c := a.Classification()
	return Row{
		Severity:  a.Severity(),
		Time:      a.Time(),
		Location:  orDefault(a.LocationText(), PendingLocation),
		Image:     orDefault(a.Image(), PlaceholderImage),
		Color:     c.Color,
		TextColor: c.TextColor,
		Icon:      c.Icon,
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
