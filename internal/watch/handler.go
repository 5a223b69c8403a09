package watch

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/medhedtech/medh-web-sub027/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// ProvenanceHeader carries the navigation provenance marker with a session
// request.
const ProvenanceHeader = "X-Watch-Provenance"

// Handler exposes the watch controller's HTTP endpoints using go-chi.
type Handler struct {
	svc        *Service
	log        *slog.Logger
	metrics    *metrics.Metrics
	landingURL string
}

// NewHandler returns a Handler for the given Service. Metrics may be nil to
// disable metric recording (e.g. in tests). landingURL is where viewers with
// bad provenance are redirected.
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics, landingURL string) *Handler {
	if landingURL == "" {
		landingURL = "/"
	}
	return &Handler{svc: svc, log: log, metrics: m, landingURL: landingURL}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// BeginSession handles POST /watch/{content_id}/session.
// The X-Watch-Provenance header must carry a recognized marker.
func (h *Handler) BeginSession(w http.ResponseWriter, r *http.Request) {
	contentID := ContentID(chi.URLParam(r, "content_id"))
	if contentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	cs, ld, err := h.svc.Begin(r.Context(), contentID, r.Header.Get(ProvenanceHeader))
	switch {
	case errors.Is(err, ErrBadProvenance):
		h.log.Info("session rejected, bad provenance", slog.String("content_id", string(contentID)))
		if h.metrics != nil {
			h.metrics.IncProvenanceRejected()
		}
		http.Redirect(w, r, h.landingURL, http.StatusSeeOther)
		return
	case errors.Is(err, ErrSessionCollision):
		h.log.Info("session rejected, already active", slog.String("content_id", string(contentID)))
		if h.metrics != nil {
			h.metrics.IncSessionCollisions()
		}
		writeJSON(w, http.StatusConflict, errorResponse{Error: "this video is already open elsewhere"})
		return
	case err != nil:
		h.log.Error("begin session failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.IncSessionsStarted()
	}
	writeJSON(w, http.StatusCreated, struct {
		Session  *ContentSession `json:"session"`
		Lockdown []LockdownRule  `json:"lockdown"`
	}{Session: cs, Lockdown: ld.Rules()})
}

// EndSession handles DELETE /watch/{content_id}/session?token=<tabToken>.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	contentID := ContentID(chi.URLParam(r, "content_id"))
	if contentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.End(r.Context(), contentID, r.URL.Query().Get("token")); err != nil {
		h.log.Error("end session failed", slog.String("content_id", string(contentID)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetLockdown handles GET /watch/{content_id}/lockdown.
func (h *Handler) GetLockdown(w http.ResponseWriter, r *http.Request) {
	contentID := ContentID(chi.URLParam(r, "content_id"))
	rules, ok := h.svc.LockdownRules(contentID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Rules []LockdownRule `json:"rules"`
	}{Rules: rules})
}

// ResolveLocator handles POST /watch/{content_id}/locator.
// Body: {"sessionId": "..."} or {"batchId": ..., "participantId": ..., "sequenceNumber": ...}.
func (h *Handler) ResolveLocator(w http.ResponseWriter, r *http.Request) {
	var params ResolveParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.log.Debug("invalid resolve body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if params.SessionID == "" && !params.Complete() {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	loc, err := h.svc.Resolve(r.Context(), params)
	if err != nil {
		// Soft failure: the page keeps its current locator, if any, and may
		// retry later.
		h.log.Warn("locator resolution failed", slog.String("error", err.Error()))
		if h.metrics != nil {
			h.metrics.IncResolutionFailures()
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "could not resolve a playable locator"})
		return
	}

	if h.metrics != nil {
		h.metrics.IncResolutions()
	}
	writeJSON(w, http.StatusOK, loc)
}

// recoverRequest is the payload the player surface sends when it observes an
// error event.
type recoverRequest struct {
	NativeErrorCode int           `json:"nativeErrorCode"`
	SessionTitle    string        `json:"sessionTitle,omitempty"`
	Current         *MediaLocator `json:"currentLocator,omitempty"`
	Params          ResolveParams `json:"params"`
}

// Recover handles POST /watch/{content_id}/recover. A successful pass
// returns the replacement locator; an exhausted or terminal fault returns
// 410 Gone with the error panel payload.
func (h *Handler) Recover(w http.ResponseWriter, r *http.Request) {
	contentID := ContentID(chi.URLParam(r, "content_id"))
	if contentID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req recoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid recover body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	loc, step, fault, err := h.svc.ReportFault(r.Context(), contentID, req.NativeErrorCode, req.Current, req.Params)
	if err != nil {
		if errors.Is(err, ErrRecoveryExhausted) || errors.Is(err, ErrRetryBudgetExhausted) {
			if h.metrics != nil {
				h.metrics.IncRecoveriesExhausted()
			}
			writeJSON(w, http.StatusGone, BuildPanel(fault, req.SessionTitle, req.Current))
			return
		}
		h.log.Error("recovery failed", slog.String("content_id", string(contentID)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.IncRecoveries(string(step))
	}
	writeJSON(w, http.StatusOK, struct {
		Locator *MediaLocator `json:"locator"`
		Step    RecoveryStep  `json:"step"`
		Fault   PlaybackFault `json:"fault"`
	}{Locator: loc, Step: step, Fault: fault})
}
