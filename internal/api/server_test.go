package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/strikewindow/internal/config"
)

type fakeStatus struct {
	mode     string
	tripped  bool
	inflight int
}

func (f *fakeStatus) Mode() string            { return f.mode }
func (f *fakeStatus) AutoStopTripped() bool    { return f.tripped }
func (f *fakeStatus) InflightOrderCount() int  { return f.inflight }

type fakeKill struct {
	triggered chan struct{}
}

func (f *fakeKill) Trigger(done <-chan struct{}) { close(f.triggered) }

type fakeReloader struct {
	manifest *config.LaunchManifest
	err      error
}

func (f *fakeReloader) Reload(path string) (*config.LaunchManifest, error) { return f.manifest, f.err }

func newTestServer() *Server {
	return New(Config{
		Port:     0,
		Log:      zerolog.Nop(),
		Status:   &fakeStatus{mode: "PAPER", tripped: false, inflight: 2},
		Kill:     &fakeKill{triggered: make(chan struct{})},
		Manifest: &fakeReloader{manifest: &config.LaunchManifest{Strategies: []string{"a"}}},
	})
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStatus_ReportsStatusProviderFields(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mode":"PAPER"`)
	assert.Contains(t, rec.Body.String(), `"inflight_order_count":2`)
}

func TestHandleKill_Returns202AndTriggersAsynchronously(t *testing.T) {
	s := newTestServer()
	kill := s.kill.(*fakeKill)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/kill", nil)
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	<-kill.triggered
}

func TestHandleManifestReload_RejectsMissingPath(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/manifest/reload", nil)
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
