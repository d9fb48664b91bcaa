package sim

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/edosecure/console/internal/model"
)

var cameraSeed = []struct {
	name     string
	location string
	lat, lng float64
}{
	{"Ring Road Camera 1", "Ring Road, Benin City", 6.3350, 5.6037},
	{"Sapele Road Camera", "Sapele Road Junction", 6.3180, 5.6120},
	{"Airport Road Camera", "Airport Road Entrance", 6.3050, 5.5990},
	{"New Benin Camera", "New Benin Market Area", 6.3420, 5.6280},
	{"GRA Camera", "GRA Main Gate", 6.3290, 5.6350},
	{"Uselu Camera", "Uselu Market", 6.3580, 5.6180},
	{"Third Circular Road", "Third Circular Junction", 6.3150, 5.6400},
	{"Akpakpava Camera", "Akpakpava Road", 6.3380, 5.6150},
}

var hotspots = []struct {
	name     string
	lat, lng float64
}{
	{"Ring Road", 6.3350, 5.6037},
	{"Sapele Road", 6.3180, 5.6120},
	{"Airport Road", 6.3050, 5.5990},
	{"New Benin", 6.3420, 5.6280},
	{"GRA", 6.3290, 5.6350},
	{"Uselu", 6.3580, 5.6180},
	{"Akpakpava", 6.3380, 5.6150},
}

var incidentTypes = []string{
	"crowd_detection", "person_detection", "motion_anomaly", "night_activity", "restricted_area",
}

// weightedSeverity skews toward low severity the way real detections do.
func weightedSeverity(rng *rand.Rand) string {
	switch n := rng.Intn(10); {
	case n < 4:
		return "low"
	case n < 7:
		return "medium"
	case n < 9:
		return "high"
	default:
		return "critical"
	}
}

func seedCameras(rng *rand.Rand) []model.Camera {
	cams := make([]model.Camera, 0, len(cameraSeed))
	for i, c := range cameraSeed {
		status := model.CameraOnline
		switch rng.Intn(10) {
		case 8:
			status = model.CameraOffline
		case 9:
			status = model.CameraMaintenance
		}
		id := fmt.Sprintf("CAM-%03d", i+1)
		cams = append(cams, model.Camera{
			ID:        id,
			Name:      c.name,
			Location:  c.location,
			Latitude:  c.lat,
			Longitude: c.lng,
			Status:    status,
			Type:      "cctv",
			StreamURL: "/streams/" + strings.ToLower(id),
		})
	}
	return cams
}

func seedIncidents(rng *rand.Rand, now time.Time) []model.Incident {
	statuses := []string{
		model.StatusActive, model.StatusActive, model.StatusActive,
		model.StatusAcknowledged, model.StatusAcknowledged,
		model.StatusResolved, model.StatusResolved, model.StatusResolved, model.StatusResolved, model.StatusResolved,
	}

	incs := make([]model.Incident, 0, 25)
	for i := 0; i < 25; i++ {
		spot := hotspots[rng.Intn(len(hotspots))]
		itype := incidentTypes[rng.Intn(len(incidentTypes))]
		created := now.Add(-time.Duration(1+rng.Intn(168)) * time.Hour)

		incs = append(incs, model.Incident{
			ID:          fmt.Sprintf("%d", i+1),
			Type:        itype,
			Severity:    weightedSeverity(rng),
			Location:    spot.name,
			Latitude:    spot.lat + (rng.Float64()-0.5)*0.01,
			Longitude:   spot.lng + (rng.Float64()-0.5)*0.01,
			Timestamp:   created.UTC().Format(time.RFC3339),
			Description: describe(itype, spot.name),
			Confidence:  0.70 + rng.Float64()*0.28,
			CameraID:    fmt.Sprintf("CAM-%03d", 1+rng.Intn(len(cameraSeed))),
			Status:      statuses[rng.Intn(len(statuses))],
		})
	}
	return incs
}

func describe(incidentType, location string) string {
	words := strings.Split(incidentType, "_")
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return fmt.Sprintf("%s detected at %s", strings.Join(words, " "), location)
}
