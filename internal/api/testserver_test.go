package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gridworld-editor/backend/internal/logging"
	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/session"
	"github.com/gridworld-editor/backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const sampleFileID = "genome-1"

var _ SessionManager = (*session.Manager)(nil)

type testServer struct {
	e        *echo.Echo
	store    *testutil.MockStorage
	sessions *session.Manager
	hub      *WebSocketHub
}

func newTestServer(t *testing.T, opts FileOptions) *testServer {
	t.Helper()

	store := testutil.NewMockStorage()
	store.AddFile(sampleFileID, testutil.SampleGenomeName, []byte(testutil.SampleGenome))

	mgr := session.NewManager(store, logging.Discard())
	hub := NewWebSocketHub(mgr, 0, logging.Discard())
	mgr.OnChange(hub.Notify)

	e := echo.New()
	SetupMiddleware(e, MiddlewareConfig{ShowDetails: true})
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:    store,
		Sessions: mgr,
		Hub:      hub,
		Version:  "test",
		Files:    opts,
		Log:      logging.Discard(),
	}))

	t.Cleanup(func() {
		hub.Close()
		for _, s := range mgr.ListSessions() {
			mgr.Close(s.ID)
		}
	})

	return &testServer{e: e, store: store, sessions: mgr, hub: hub}
}

func (s *testServer) do(method, target, body, contentType string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(method, target, body string) *httptest.ResponseRecorder {
	return s.do(method, target, body, echo.MIMEApplicationJSON)
}

// openSample opens the sample genome and returns the session id.
func (s *testServer) openSample(t *testing.T) string {
	t.Helper()
	rec := s.doJSON(http.MethodPost, "/api/sessions", `{"fileId":"`+sampleFileID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sess models.EditSession
	decodeBody(t, rec, &sess)
	return sess.ID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	decodeBody(t, rec, &apiErr)
	return apiErr
}
