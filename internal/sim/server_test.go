package sim

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edosecure/console/internal/model"
	"github.com/edosecure/console/internal/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer("test-key", 42, zerolog.Nop())
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestLogin(t *testing.T) {
	_, ts := newTestServer(t)

	t.Run("valid credentials", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/auth/login", map[string]string{
			"username": "operator", "password": "operator123",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			AccessToken string     `json:"access_token"`
			User        model.User `json:"user"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.NotEmpty(t, out.AccessToken)
		assert.Equal(t, "operator", out.User.Username)
		assert.Equal(t, "operator", out.User.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/auth/login", map[string]string{
			"username": "operator", "password": "nope",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var out map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "Invalid credentials", out["detail"])
	})

	t.Run("unknown user", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/auth/login", map[string]string{
			"username": "ghost", "password": "x",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestListIncidents(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/incidents")
	require.NoError(t, err)
	defer resp.Body.Close()

	var incs []model.Incident
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&incs))
	require.NotEmpty(t, incs)

	for i := 1; i < len(incs); i++ {
		assert.GreaterOrEqual(t, incs[i-1].Timestamp, incs[i].Timestamp, "newest first")
	}
	for _, inc := range incs {
		assert.NoError(t, model.ValidateIncident(&inc), "seed data passes the ingest schema")
	}

	t.Run("status filter", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/incidents?status=active")
		require.NoError(t, err)
		defer resp.Body.Close()

		var active []model.Incident
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&active))
		for _, inc := range active {
			assert.Equal(t, model.StatusActive, inc.Status)
		}
	})

	t.Run("limit", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/incidents?limit=3")
		require.NoError(t, err)
		defer resp.Body.Close()

		var limited []model.Incident
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&limited))
		assert.Len(t, limited, 3)
	})
}

func TestListCameras(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/cameras")
	require.NoError(t, err)
	defer resp.Body.Close()

	var cams []model.Camera
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cams))
	require.NotEmpty(t, cams)
	for _, cam := range cams {
		assert.NoError(t, model.ValidateCamera(&cam))
	}
}

func TestPatchIncident(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/incidents?limit=1")
	require.NoError(t, err)
	var incs []model.Incident
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&incs))
	resp.Body.Close()
	require.Len(t, incs, 1)
	id := incs[0].ID

	patch := func(id, status string) *http.Response {
		body, _ := json.Marshal(map[string]string{"status": status})
		req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/incidents/"+id, bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("updates and echoes", func(t *testing.T) {
		resp := patch(id, "acknowledged")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out model.Incident
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, id, out.ID)
		assert.Equal(t, "acknowledged", out.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		resp := patch(id, "vanished")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("unknown incident", func(t *testing.T) {
		resp := patch("99999", "resolved")
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		var out map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "Incident not found", out["detail"])
	})
}

func TestAlertsWS_Broadcast(t *testing.T) {
	s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/alerts"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond)

	inc := s.generateIncident()
	s.hub.Broadcast(map[string]interface{}{"type": "new_incident", "data": inc})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt store.PushEvent
	require.NoError(t, json.Unmarshal(msg, &evt))
	assert.Equal(t, "new_incident", evt.Type)

	var got model.Incident
	require.NoError(t, json.Unmarshal(evt.Data, &got))
	assert.Equal(t, inc.ID, got.ID)
	assert.NoError(t, model.ValidateIncident(&got), "broadcast incidents pass ingest validation")
}

func TestAlertsWS_RejectsBadToken(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/alerts?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGenerateIncident_SchemaAndIDs(t *testing.T) {
	s, _ := newTestServer(t)

	a := s.generateIncident()
	b := s.generateIncident()

	assert.NoError(t, model.ValidateIncident(&a))
	assert.NoError(t, model.ValidateIncident(&b))
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, model.StatusActive, a.Status)
}
