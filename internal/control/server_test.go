package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/results"
)

type stubRunner struct {
	state    pipeline.State
	progress *pipeline.Progress
	store    *results.Store
	pauseErr error
	stopped  bool
}

func (r *stubRunner) State() pipeline.State { return r.state }

func (r *stubRunner) Status() (pipeline.Progress, bool) {
	if r.progress == nil {
		return pipeline.Progress{State: r.state}, false
	}
	return *r.progress, true
}

func (r *stubRunner) Pause(context.Context) error {
	if r.pauseErr != nil {
		return r.pauseErr
	}
	r.state = pipeline.StatePaused
	return nil
}

func (r *stubRunner) Resume() error {
	if r.state != pipeline.StatePaused {
		return eris.Wrap(pipeline.ErrInvalidTransition, "resume")
	}
	r.state = pipeline.StateRunning
	return nil
}

func (r *stubRunner) Stop(context.Context) error {
	r.stopped = true
	r.state = pipeline.StateStopped
	return nil
}

func (r *stubRunner) Results() *results.Store { return r.store }

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func newTestServer(r *stubRunner) *httptest.Server {
	return httptest.NewServer(NewServer(r, Options{
		AllowedOrigins: []string{"chrome-extension://abc"},
		Now:            fixedNow,
	}).Handler())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubRunner{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	r := &stubRunner{
		state:    pipeline.StateRunning,
		progress: &pipeline.Progress{RunID: "run-1", State: pipeline.StateRunning, Processed: 2, Total: 5},
	}
	srv := newTestServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var body struct {
		State    string `json:"state"`
		Progress struct {
			RunID     string `json:"run_id"`
			Processed int    `json:"processed"`
			Total     int    `json:"total"`
		} `json:"progress"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "running", body.State)
	assert.Equal(t, "run-1", body.Progress.RunID)
	assert.Equal(t, 2, body.Progress.Processed)
	assert.Equal(t, 5, body.Progress.Total)
}

func TestStatus_Idle(t *testing.T) {
	srv := newTestServer(&stubRunner{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "idle", body["state"])
	assert.NotContains(t, body, "progress")
}

func TestTransitions(t *testing.T) {
	r := &stubRunner{state: pipeline.StateRunning}
	srv := newTestServer(r)
	defer srv.Close()

	post := func(path string) *http.Response {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		require.NoError(t, err)
		return resp
	}

	resp := post("/pause")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, pipeline.StatePaused, r.state)

	resp = post("/resume")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = post("/resume")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	resp = post("/stop")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
	assert.True(t, r.stopped)
}

func TestPause_StoreFailure(t *testing.T) {
	srv := newTestServer(&stubRunner{state: pipeline.StateRunning, pauseErr: eris.New("checkpoint: save")})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/pause", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestExport(t *testing.T) {
	lead := model.NewLead([]string{"name", "profile"}, []string{"Ann", "linkedin.com/in/ann"})
	store := results.NewStore(model.Completed(lead, 0, model.Messages{"a", "b", "c"}, 200, fixedNow()))
	srv := newTestServer(&stubRunner{store: store})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/results.csv")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "enriched_leads_2026-03-01T12-00-00.csv")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "name,profile,pitch_1,pitch_2,pitch_3,enrichment_status"))
}

func TestExport_NoResults(t *testing.T) {
	srv := newTestServer(&stubRunner{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/results.csv")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(&stubRunner{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "chrome-extension://abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "chrome-extension://abc", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close() //nolint:errcheck
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}
