package model

import (
	"fmt"
	"strings"
	"time"
)

// Incident is a detected security event as delivered by the platform API.
// Field names follow the wire contract (camelCase JSON).
type Incident struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Severity     string  `json:"severity"`
	Location     string  `json:"location"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Timestamp    string  `json:"timestamp"`
	Description  string  `json:"description"`
	Confidence   float64 `json:"confidence"`
	CameraID     string  `json:"cameraId"`
	Status       string  `json:"status"`
	VideoClipURL string  `json:"videoClipUrl,omitempty"`
}

// Camera is a fixed sensor. Reconciled only by full replacement from the
// baseline fetch; there are no incremental camera updates on the push channel.
type Camera struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Status    string  `json:"status"`
	Type      string  `json:"type"`
	StreamURL string  `json:"streamUrl"`
}

// Alert is the ephemeral per-incident notification record. It exists only as
// a derived projection for the UI; it is never persisted server-side.
type Alert struct {
	ID           string `json:"id"`
	IncidentID   string `json:"incidentId"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
	Timestamp    string `json:"timestamp"`
	Acknowledged bool   `json:"acknowledged"`
}

// User is the authenticated operator returned by the login endpoint.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

// Incident lifecycle statuses. Transitions are monotonic:
// active -> acknowledged -> resolved, no backward moves.
const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

// Camera statuses.
const (
	CameraOnline      = "online"
	CameraOffline     = "offline"
	CameraMaintenance = "maintenance"
)

// ValidIncidentTypes is the fixed detection category enum.
var ValidIncidentTypes = map[string]bool{
	"crowd_detection":  true,
	"person_detection": true,
	"motion_anomaly":   true,
	"night_activity":   true,
	"restricted_area":  true,
}

// severityRank orders severities for comparison and display scaling.
var severityRank = map[string]int{
	"low":      1,
	"medium":   2,
	"high":     3,
	"critical": 4,
}

var validStatuses = map[string]bool{
	StatusActive:       true,
	StatusAcknowledged: true,
	StatusResolved:     true,
}

var validCameraStatuses = map[string]bool{
	CameraOnline:      true,
	CameraOffline:     true,
	CameraMaintenance: true,
}

var validCameraTypes = map[string]bool{
	"cctv":   true,
	"drone":  true,
	"mobile": true,
}

// SeverityRank returns the ordinal for a severity, 0 if unknown.
func SeverityRank(severity string) int {
	return severityRank[severity]
}

// ValidSeverity reports whether severity is one of the four known levels.
func ValidSeverity(severity string) bool {
	return severityRank[severity] != 0
}

// ValidStatus reports whether status is a known lifecycle status.
func ValidStatus(status string) bool {
	return validStatuses[status]
}

// ValidateIncident checks an inbound incident against the fixed schema.
// Payloads arrive from a dynamically typed upstream, so shape is enforced
// here at the boundary rather than trusted.
func ValidateIncident(inc *Incident) error {
	if strings.TrimSpace(inc.ID) == "" {
		return fmt.Errorf("incident id is empty")
	}
	if !ValidIncidentTypes[inc.Type] {
		return fmt.Errorf("unknown incident type: %q", inc.Type)
	}
	if !ValidSeverity(inc.Severity) {
		return fmt.Errorf("unknown severity: %q", inc.Severity)
	}
	if !validStatuses[inc.Status] {
		return fmt.Errorf("unknown status: %q", inc.Status)
	}
	if inc.Confidence < 0 || inc.Confidence > 1 {
		return fmt.Errorf("confidence out of range: %f", inc.Confidence)
	}
	return nil
}

// ValidateCamera checks a camera record from the baseline fetch.
func ValidateCamera(cam *Camera) error {
	if strings.TrimSpace(cam.ID) == "" {
		return fmt.Errorf("camera id is empty")
	}
	if !validCameraStatuses[cam.Status] {
		return fmt.Errorf("unknown camera status: %q", cam.Status)
	}
	if cam.Type != "" && !validCameraTypes[cam.Type] {
		return fmt.Errorf("unknown camera type: %q", cam.Type)
	}
	return nil
}

// ParseTimestamp parses the ISO timestamps the API emits. Falls back to the
// zero time on garbage so aggregation never panics on a single bad record.
func ParseTimestamp(ts string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}
