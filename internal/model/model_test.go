package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateIncident(t *testing.T) {
	valid := Incident{
		ID:         "1",
		Type:       "crowd_detection",
		Severity:   "high",
		Timestamp:  "2026-03-10T14:30:00Z",
		Confidence: 0.92,
		Status:     StatusActive,
	}

	tests := []struct {
		name    string
		mutate  func(*Incident)
		wantErr bool
	}{
		{"valid", func(i *Incident) {}, false},
		{"confidence at bounds", func(i *Incident) { i.Confidence = 1.0 }, false},
		{"empty id", func(i *Incident) { i.ID = "  " }, true},
		{"unknown type", func(i *Incident) { i.Type = "alien_detection" }, true},
		{"unknown severity", func(i *Incident) { i.Severity = "extreme" }, true},
		{"unknown status", func(i *Incident) { i.Status = "pending" }, true},
		{"confidence too high", func(i *Incident) { i.Confidence = 1.01 }, true},
		{"confidence negative", func(i *Incident) { i.Confidence = -0.1 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inc := valid
			tc.mutate(&inc)
			err := ValidateIncident(&inc)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCamera(t *testing.T) {
	tests := []struct {
		name    string
		cam     Camera
		wantErr bool
	}{
		{"valid", Camera{ID: "CAM-001", Status: CameraOnline, Type: "cctv"}, false},
		{"empty type allowed", Camera{ID: "CAM-002", Status: CameraMaintenance}, false},
		{"empty id", Camera{Status: CameraOnline}, true},
		{"unknown status", Camera{ID: "CAM-003", Status: "burning"}, true},
		{"unknown type", Camera{ID: "CAM-004", Status: CameraOnline, Type: "satellite"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCamera(&tc.cam)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityRank("low"), SeverityRank("medium"))
	assert.Less(t, SeverityRank("medium"), SeverityRank("high"))
	assert.Less(t, SeverityRank("high"), SeverityRank("critical"))
	assert.Zero(t, SeverityRank("unknown"))

	assert.True(t, ValidSeverity("critical"))
	assert.False(t, ValidSeverity(""))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", "2026-03-10T14:30:00Z", time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)},
		{"rfc3339 nano", "2026-03-10T14:30:00.123456789Z", time.Date(2026, 3, 10, 14, 30, 0, 123456789, time.UTC)},
		{"no zone", "2026-03-10T14:30:00", time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)},
		{"garbage", "yesterday-ish", time.Time{}},
		{"empty", "", time.Time{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, ParseTimestamp(tc.in).Equal(tc.want), "got %v", ParseTimestamp(tc.in))
		})
	}
}
