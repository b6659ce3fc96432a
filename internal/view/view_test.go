package view

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

func sampleAlerts() []models.Alert {
	return []models.Alert{
		{"severity": "Low", "time": "10:00:01", "location_text": "MG Road", "lat": 12.97, "lng": 77.59},
		{"severity": "Medium", "time": "10:00:02"},
		{"severity": "High", "time": "10:00:03", "lat": "not-a-number", "lng": "12.9"},
		{"severity": "bogus", "time": "10:00:04", "image": "/snaps/4.jpg"},
		{"severity": "High", "time": "10:00:05", "lat": "12.91", "lng": "77.60"},
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(sampleAlerts())
	want := Summary{Total: 5, High: 2, Medium: 1, Low: 1, Unclassified: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected summary (-want +got):\n%s", diff)
	}
}

func TestBuild_RowsNewestFirstWithFallbacks(t *testing.T) {
	st := Build(sampleAlerts(), FilterAll, time.Time{})

	if len(st.Rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(st.Rows))
	}
	if st.Rows[0].Time != "10:00:05" {
		t.Errorf("expected newest row first, got %s", st.Rows[0].Time)
	}
	if st.Rows[1].Image != "/snaps/4.jpg" {
		t.Errorf("expected supplied image, got %s", st.Rows[1].Image)
	}
	if st.Rows[0].Image != PlaceholderImage {
		t.Errorf("expected placeholder image, got %s", st.Rows[0].Image)
	}
	if st.Rows[0].Location != PendingLocation {
		t.Errorf("expected pending location, got %s", st.Rows[0].Location)
	}
	if st.Rows[1].Color != "#32cd32" {
		t.Errorf("unknown severity should render as Low, got %s", st.Rows[1].Color)
	}
}

func TestBuild_FilterOnlyNarrowsRows(t *testing.T) {
	all := Build(sampleAlerts(), FilterAll, time.Time{})
	high := Build(sampleAlerts(), FilterHigh, time.Time{})

	if len(high.Rows) != 2 {
		t.Errorf("expected 2 High rows, got %d", len(high.Rows))
	}
	for _, r := range high.Rows {
		if r.Severity != "High" {
			t.Errorf("filtered row has severity %s", r.Severity)
		}
	}
	if diff := cmp.Diff(all.Summary, high.Summary); diff != "" {
		t.Errorf("filter changed the summary (-all +high):\n%s", diff)
	}
	if diff := cmp.Diff(all.Markers, high.Markers); diff != "" {
		t.Errorf("filter changed the markers (-all +high):\n%s", diff)
	}
}

func TestMapMarkers_ExcludesInvalidCoordinates(t *testing.T) {
	markers := MapMarkers(sampleAlerts())

	want := []Marker{
		{Lat: 12.97, Lng: 77.59, Severity: "Low", Time: "10:00:01", Location: "MG Road"},
		{Lat: 12.91, Lng: 77.60, Severity: "High", Time: "10:00:05", Location: UnknownLocation},
	}
	if diff := cmp.Diff(want, markers); diff != "" {
		t.Errorf("unexpected markers (-want +got):\n%s", diff)
	}
}

func TestBannerActive(t *testing.T) {
	if BannerActive(nil) {
		t.Error("empty view must not show the banner")
	}
	alerts := sampleAlerts()
	if !BannerActive(alerts) {
		t.Error("banner should be lit while the newest alert is High")
	}
	alerts = append(alerts, models.Alert{"severity": "Low"})
	if BannerActive(alerts) {
		t.Error("banner should clear once the newest alert is not High")
	}
}

func TestParseFilter(t *testing.T) {
	for _, s := range []string{"All", "High", "Medium", "Low"} {
		if f, err := ParseFilter(s); err != nil || string(f) != s {
			t.Errorf("ParseFilter(%q) = %q, %v", s, f, err)
		}
	}
	if f, err := ParseFilter(""); err != nil || f != FilterAll {
		t.Errorf("empty filter should mean All, got %q, %v", f, err)
	}
	if _, err := ParseFilter("high"); err == nil {
		t.Error("expected error for lowercase label")
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	st := Build(sampleAlerts(), FilterMedium, time.Now())
	if err := Render(&buf, st); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Total 5 | High 2 | Medium 1 | Low 1",
		highSeverityBanner,
		"Map: 2 of 5 alerts placeable",
		"Live alerts (Medium):",
		"10:00:02 | Location Pending",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "MG Road") {
		t.Error("filtered-out rows should not be rendered")
	}
}

func TestRender_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Build(nil, FilterAll, time.Time{})); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No alerts yet") {
		t.Errorf("expected empty placeholder, got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), highSeverityBanner) {
		t.Error("banner must not render for an empty view")
	}
}
