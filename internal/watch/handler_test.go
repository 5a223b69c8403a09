package watch

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T, lookup SessionLookup, locate MediaLocateService, signer PathSigner) *Handler {
	t.Helper()
	svc := newTestService(lookup, locate, signer)
	return NewHandler(svc, testLogger(), nil, "/browse")
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/watch/{content_id}", func(r chi.Router) {
		r.Post("/session", h.BeginSession)
		r.Delete("/session", h.EndSession)
		r.Get("/lockdown", h.GetLockdown)
		r.Post("/locator", h.ResolveLocator)
		r.Post("/recover", h.Recover)
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, target string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

var provenanceHeader = map[string]string{ProvenanceHeader: "course-page"}

func TestHandler_BeginSession(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{}, &fakeLocate{}, nil)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/watch/v1/session", nil, provenanceHeader)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var body struct {
		Session  *ContentSession `json:"session"`
		Lockdown []LockdownRule  `json:"lockdown"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Session == nil || body.Session.TabToken == "" {
		t.Errorf("response should carry the session: %s", rec.Body.String())
	}
	if len(body.Lockdown) == 0 {
		t.Errorf("response should carry lockdown rules: %s", rec.Body.String())
	}
}

func TestHandler_BeginSession_no_provenance_redirects(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{}, &fakeLocate{}, nil)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/watch/v1/session", nil, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/browse" {
		t.Errorf("expected redirect to landing surface, got %q", loc)
	}
}

func TestHandler_BeginSession_conflict(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{}, &fakeLocate{}, nil)
	r := newTestRouter(h)

	if rec := doJSON(t, r, http.MethodPost, "/watch/v1/session", nil, provenanceHeader); rec.Code != http.StatusCreated {
		t.Fatalf("setup: expected 201, got %d", rec.Code)
	}
	rec := doJSON(t, r, http.MethodPost, "/watch/v1/session", nil, provenanceHeader)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for a second fresh session, got %d", rec.Code)
	}
}

func TestHandler_EndSession_frees_slot(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{}, &fakeLocate{}, nil)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/watch/v1/session", nil, provenanceHeader)
	if rec.Code != http.StatusCreated {
		t.Fatalf("setup: expected 201, got %d", rec.Code)
	}
	var body struct {
		Session *ContentSession `json:"session"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)

	recEnd := doJSON(t, r, http.MethodDelete, "/watch/v1/session?token="+body.Session.TabToken, nil, nil)
	if recEnd.Code != http.StatusOK {
		t.Fatalf("end session: expected 200, got %d", recEnd.Code)
	}

	rec2 := doJSON(t, r, http.MethodPost, "/watch/v1/session", nil, provenanceHeader)
	if rec2.Code != http.StatusCreated {
		t.Errorf("expected 201 after teardown, got %d", rec2.Code)
	}
}

func TestHandler_GetLockdown(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{}, &fakeLocate{}, nil)
	r := newTestRouter(h)

	if rec := doJSON(t, r, http.MethodGet, "/watch/v1/lockdown", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("no session: expected 404, got %d", rec.Code)
	}

	_ = doJSON(t, r, http.MethodPost, "/watch/v1/session", nil, provenanceHeader)
	rec := doJSON(t, r, http.MethodGet, "/watch/v1/lockdown", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("pause_on_hide")) {
		t.Errorf("unexpected rules body: %s", rec.Body.String())
	}
}

func TestHandler_ResolveLocator(t *testing.T) {
	lookup := &fakeLookup{coords: Coordinates{BatchID: "B1", ParticipantID: "P1", SequenceNumber: "3"}}
	locate := &fakeLocate{url: "https://store.example/B1/P1/3?sig=abc"}
	h := newTestHandler(t, lookup, locate, nil)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/watch/v1/locator", map[string]string{"sessionId": "S1"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var loc MediaLocator
	if err := json.Unmarshal(rec.Body.Bytes(), &loc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if loc.URL != "https://store.example/B1/P1/3?sig=abc" {
		t.Errorf("unexpected locator URL: %s", loc.URL)
	}
	if loc.BackupURL != "https://cdn.example.net/B1/P1/3?sig=abc" {
		t.Errorf("unexpected backup URL: %s", loc.BackupURL)
	}
}

func TestHandler_ResolveLocator_bad_request(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{}, &fakeLocate{}, nil)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/watch/v1/locator", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", rec.Code)
	}

	if rec := doJSON(t, r, http.MethodPost, "/watch/v1/locator", map[string]string{}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing identifying input, got %d", rec.Code)
	}
}

func TestHandler_ResolveLocator_soft_failure(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{err: errors.New("down")}, &fakeLocate{}, nil)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/watch/v1/locator", map[string]string{"sessionId": "S1"}, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for resolution failure, got %d", rec.Code)
	}
}

func TestHandler_Recover_backup_swap(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{}, &fakeLocate{}, nil)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/watch/v1/recover", map[string]interface{}{
		"nativeErrorCode": NativeErrSrcNotSupported,
		"currentLocator": map[string]string{
			"url":       "https://cdn.example.net/v.mp4?sig=old",
			"backupUrl": "https://store.example/v.mp4?sig=old",
		},
		"params": map[string]string{"sessionId": "S1"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Locator *MediaLocator `json:"locator"`
		Step    RecoveryStep  `json:"step"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Step != StepBackupSwap {
		t.Errorf("expected backup swap, got %s", body.Step)
	}
	if body.Locator.URL != "https://store.example/v.mp4?sig=old" {
		t.Errorf("unexpected recovered URL: %s", body.Locator.URL)
	}
}

func TestHandler_Recover_terminal_returns_panel(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{}, &fakeLocate{}, nil)
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/watch/v1/recover", map[string]interface{}{
		"nativeErrorCode": NativeErrAborted,
		"sessionTitle":    "Week 3",
		"currentLocator":  map[string]string{"url": "https://cdn.example.net/v.mp4?sig=x"},
		"params":          map[string]string{"sessionId": "S1"},
	}, nil)
	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d: %s", rec.Code, rec.Body.String())
	}

	var panel Panel
	if err := json.Unmarshal(rec.Body.Bytes(), &panel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if panel.Retry != "manual" || panel.Message == "" {
		t.Errorf("unexpected panel: %+v", panel)
	}
	found := false
	for _, line := range panel.Diagnostics {
		if line == "session: Week 3" {
			found = true
		}
	}
	if !found {
		t.Errorf("panel diagnostics should include the session title: %v", panel.Diagnostics)
	}
}

func TestHandler_Recover_exhausted_returns_single_panel(t *testing.T) {
	h := newTestHandler(t, &fakeLookup{err: errors.New("down")}, &fakeLocate{}, &fakeSigner{err: errors.New("down")})
	r := newTestRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/watch/v1/recover", map[string]interface{}{
		"nativeErrorCode": NativeErrNetwork,
		"currentLocator":  map[string]string{"url": "https://cdn.example.net/v.mp4?sig=x"},
		"params":          map[string]string{"sessionId": "S1"},
	}, nil)
	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d: %s", rec.Code, rec.Body.String())
	}

	var panel Panel
	if err := json.Unmarshal(rec.Body.Bytes(), &panel); err != nil {
		t.Fatalf("decode single panel payload: %v", err)
	}
	if panel.Retry != "manual" {
		t.Errorf("unexpected panel: %+v", panel)
	}
}
