// CLAUDE:SUMMARY chi control API: settings CRUD, fire-and-forget action posting, session record, status notice, downloads, run log.
package pilot

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/tabpilot/audit"
	"github.com/hazyhaar/tabpilot/auth"
	"github.com/hazyhaar/tabpilot/kit"
	"github.com/hazyhaar/tabpilot/shield"
)

// Handler returns the HTTP control API. When HTTP.TokenSecret is set every
// /api route requires a bearer token.
//
//	GET  /health
//	GET  /api/settings
//	PATCH /api/settings
//	POST /api/settings/reset
//	POST /api/actions/{action}   RUN | SAVE_TASK_ID | CAPTURE_QA_FEEDBACK
//	GET  /api/session
//	GET  /api/status
//	POST /api/status/hide
//	GET  /api/downloads?limit=N
//	GET  /api/runs?action=A&status=S&limit=N
//	GET  /api/runs/{runID}
func (p *Pilot) Handler() http.Handler {
	ep := p.endpoints()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.APIStack() {
		r.Use(mw)
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(kit.WithTransport(req.Context(), "http")))
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if secret := p.Config.HTTP.TokenSecret; secret != "" {
			r.Use(auth.Require([]byte(secret)))
		}
		r.Get("/settings", func(w http.ResponseWriter, req *http.Request) {
			serve(w, req, ep.loadSettings, nil, http.StatusOK)
		})
		r.Patch("/settings", func(w http.ResponseWriter, req *http.Request) {
			var patch Patch
			if err := json.NewDecoder(req.Body).Decode(&patch); err != nil {
				writeError(w, http.StatusBadRequest, "invalid settings patch")
				return
			}
			serve(w, req, ep.updateSettings, patch, http.StatusOK)
		})
		r.Post("/settings/reset", func(w http.ResponseWriter, req *http.Request) {
			serve(w, req, ep.resetSettings, nil, http.StatusOK)
		})
		r.Post("/actions/{action}", func(w http.ResponseWriter, req *http.Request) {
			msg, err := ParseMessage(chi.URLParam(req, "action"))
			if err != nil {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			serve(w, req, ep.postAction, msg, http.StatusAccepted)
		})
		r.Get("/session", func(w http.ResponseWriter, req *http.Request) {
			serve(w, req, ep.session, nil, http.StatusOK)
		})
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, p.Status.Snapshot())
		})
		r.Post("/status/hide", func(w http.ResponseWriter, _ *http.Request) {
			p.Status.Hide()
			writeJSON(w, http.StatusOK, p.Status.Snapshot())
		})
		r.Get("/downloads", func(w http.ResponseWriter, req *http.Request) {
			limit, ok := queryLimit(w, req)
			if !ok {
				return
			}
			serve(w, req, ep.downloads, limit, http.StatusOK)
		})
		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			limit, ok := queryLimit(w, req)
			if !ok {
				return
			}
			q := req.URL.Query()
			serve(w, req, ep.runs, audit.Filter{Action: q.Get("action"), Status: q.Get("status"), Limit: limit}, http.StatusOK)
		})
		r.Get("/runs/{runID}", func(w http.ResponseWriter, req *http.Request) {
			serve(w, req, ep.run, chi.URLParam(req, "runID"), http.StatusOK)
		})
	})
	return r
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func serve(w http.ResponseWriter, r *http.Request, e kit.Endpoint, req any, okStatus int) {
	resp, err := e(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, okStatus, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrPrerequisite):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidSetting):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoTabs), errors.Is(err, ErrNoTaskID), errors.Is(err, ErrNoTaskURL),
		errors.Is(err, audit.ErrNotFound):
		return http.StatusNotFound
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
