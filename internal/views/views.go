package views

import (
	"time"

	"github.com/edosecure/console/internal/model"
	"github.com/edosecure/console/internal/store"
)

// Pure projections over a store snapshot. Given the same snapshot and the
// same now, every function returns identical output and mutates nothing.

// Marker is one point on the map layer.
type Marker struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"` // "camera" or "incident"
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Severity  string  `json:"severity,omitempty"`
	Label     string  `json:"label"`
}

// Overlay is a severity-scaled radius circle drawn per incident in the
// full (non-compact) map mode.
type Overlay struct {
	IncidentID string  `json:"incidentId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Radius     int     `json:"radius"`
}

// MapLayerSet is everything the map renderer needs.
type MapLayerSet struct {
	Cameras   []Marker  `json:"cameras"`
	Incidents []Marker  `json:"incidents"`
	Overlays  []Overlay `json:"overlays,omitempty"`
}

// TrendBucket is one calendar day of the trailing-week trend.
type TrendBucket struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Incidents int    `json:"incidents"`
	Resolved  int    `json:"resolved"`
}

// Stats backs the dashboard stat cards.
type Stats struct {
	ActiveIncidents int `json:"activeIncidents"`
	CriticalActive  int `json:"criticalActive"`
	OnlineCameras   int `json:"onlineCameras"`
	TotalCameras    int `json:"totalCameras"`
	CrowdDetections int `json:"crowdDetections"`
}

// ActiveAlerts returns alerts most-recent-first, capped to limit.
// A limit <= 0 means no cap.
func ActiveAlerts(snap store.Snapshot, limit int) []model.Alert {
	alerts := append([]model.Alert(nil), snap.Alerts...)
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts
}

// MapLayers builds one marker per camera and one per active incident. In
// non-compact mode every incident of any status also gets a radius overlay
// scaled by severity.
func MapLayers(snap store.Snapshot, compact bool) MapLayerSet {
	out := MapLayerSet{
		Cameras:   make([]Marker, 0, len(snap.Cameras)),
		Incidents: make([]Marker, 0, len(snap.Incidents)),
	}

	for _, cam := range snap.Cameras {
		out.Cameras = append(out.Cameras, Marker{
			ID:        cam.ID,
			Kind:      "camera",
			Latitude:  cam.Latitude,
			Longitude: cam.Longitude,
			Label:     cam.Name,
		})
	}

	for _, inc := range snap.Incidents {
		if inc.Status == model.StatusActive {
			out.Incidents = append(out.Incidents, Marker{
				ID:        inc.ID,
				Kind:      "incident",
				Latitude:  inc.Latitude,
				Longitude: inc.Longitude,
				Severity:  inc.Severity,
				Label:     inc.Description,
			})
		}
		if !compact {
			out.Overlays = append(out.Overlays, Overlay{
				IncidentID: inc.ID,
				Latitude:   inc.Latitude,
				Longitude:  inc.Longitude,
				Radius:     severityRadius(inc.Severity),
			})
		}
	}
	return out
}

// WeeklyTrend buckets incidents by calendar day over the trailing 7 days,
// inclusive of today. Days are calendar days in now's location; incident
// timestamps are converted before bucketing so a UTC event near midnight
// lands on the operator's calendar day. Incidents older than the window are
// excluded.
func WeeklyTrend(snap store.Snapshot, now time.Time) []TrendBucket {
	today := startOfDay(now)
	buckets := make([]TrendBucket, 7)
	index := make(map[string]int, 7)
	for i := range buckets {
		date := today.AddDate(0, 0, i-6).Format("2006-01-02")
		buckets[i].Date = date
		index[date] = i
	}

	for _, inc := range snap.Incidents {
		ts := model.ParseTimestamp(inc.Timestamp)
		if ts.IsZero() {
			continue
		}
		idx, ok := index[ts.In(now.Location()).Format("2006-01-02")]
		if !ok {
			continue
		}
		buckets[idx].Incidents++
		if inc.Status == model.StatusResolved {
			buckets[idx].Resolved++
		}
	}
	return buckets
}

// CategoryBreakdown counts incidents per detection category. Every known
// category appears, zero or not, so charts keep a stable shape.
func CategoryBreakdown(snap store.Snapshot) map[string]int {
	out := make(map[string]int, len(model.ValidIncidentTypes))
	for t := range model.ValidIncidentTypes {
		out[t] = 0
	}
	for _, inc := range snap.Incidents {
		out[inc.Type]++
	}
	return out
}

// SeverityBreakdown counts incidents per severity level.
func SeverityBreakdown(snap store.Snapshot) map[string]int {
	out := map[string]int{"low": 0, "medium": 0, "high": 0, "critical": 0}
	for _, inc := range snap.Incidents {
		out[inc.Severity]++
	}
	return out
}

// AverageConfidence is the mean confidence across all incidents, 0 if none.
func AverageConfidence(snap store.Snapshot) float64 {
	if len(snap.Incidents) == 0 {
		return 0
	}
	var sum float64
	for _, inc := range snap.Incidents {
		sum += inc.Confidence
	}
	return sum / float64(len(snap.Incidents))
}

// BuildStats computes the stat card counters.
func BuildStats(snap store.Snapshot) Stats {
	st := Stats{TotalCameras: len(snap.Cameras)}
	for _, cam := range snap.Cameras {
		if cam.Status == model.CameraOnline {
			st.OnlineCameras++
		}
	}
	for _, inc := range snap.Incidents {
		if inc.Status == model.StatusActive {
			st.ActiveIncidents++
			if inc.Severity == "critical" {
				st.CriticalActive++
			}
		}
		if inc.Type == "crowd_detection" {
			st.CrowdDetections++
		}
	}
	return st
}

func severityRadius(severity string) int {
	switch severity {
	case "critical":
		return 20
	case "high":
		return 15
	default:
		return 10
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
