// Package httpapi exposes recruit.Service over HTTP/JSON.
//
// Routes:
//
//	GET    /health
//	GET    /count                                     → visit tallies
//	GET    /boards                                    → list open boards
//	GET    /boards/{id}                               → one board (+ viewer flags)
//	POST   /boards                                    → create board
//	PATCH  /boards/{id}                               → update board
//	DELETE /boards/{id}                               → soft-delete board
//	POST   /boards/{id}/team                          → complete board, form team
//	GET    /applications                              → caller's applications
//	GET    /applications/{boardId}                    → applications on caller's board
//	POST   /applications                              → apply
//	PATCH  /applications/{boardId}/{applicationId}/accept
//	DELETE /applications/{boardId}/{applicationId}
//
// Success bodies are {"success": true, "result": ...}; failures are
// {"code": ..., "description": ...}.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kibanana/geteam-http-api/internal/auth"
	"github.com/kibanana/geteam-http-api/internal/recruit"
)

const maxBodyBytes = 1 << 20

// Handler holds shared dependencies.
type Handler struct {
	svc     *recruit.Service
	auth    *auth.Verifier
	log     *slog.Logger
	version string
}

// NewHandler returns a configured Handler.
func NewHandler(svc *recruit.Service, verifier *auth.Verifier, log *slog.Logger, version string) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, auth: verifier, log: log, version: version}
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /count", h.count)

	mux.HandleFunc("GET /boards", h.listBoards)
	mux.HandleFunc("GET /boards/{id}", h.getBoard)
	mux.HandleFunc("POST /boards", h.authed(h.createBoard))
	mux.HandleFunc("PATCH /boards/{id}", h.authed(h.updateBoard))
	mux.HandleFunc("DELETE /boards/{id}", h.authed(h.deleteBoard))
	mux.HandleFunc("POST /boards/{id}/team", h.authed(h.createTeam))

	mux.HandleFunc("GET /applications", h.authed(h.listApplications))
	mux.HandleFunc("GET /applications/{boardId}", h.authed(h.listBoardApplications))
	mux.HandleFunc("POST /applications", h.authed(h.createApplication))
	mux.HandleFunc("PATCH /applications/{boardId}/{applicationId}/accept", h.authed(h.acceptApplication))
	mux.HandleFunc("DELETE /applications/{boardId}/{applicationId}", h.authed(h.deleteApplication))
}

// ─── Identity ────────────────────────────────────────────────────────────────

type authedFunc func(w http.ResponseWriter, r *http.Request, me string)

// authed rejects anonymous callers before invoking next.
func (h *Handler) authed(next authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := h.auth.Identify(r.Header.Get("Authorization"), r.Header.Get(auth.UserIDHeader))
		if err != nil || me == "" {
			jsonError(w, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "authentication required")
			return
		}
		next(w, r, me)
	}
}

// viewer returns the caller for public routes. Bad credentials read as
// anonymous.
func (h *Handler) viewer(r *http.Request) string {
	me, err := h.auth.Identify(r.Header.Get("Authorization"), r.Header.Get(auth.UserIDHeader))
	if err != nil {
		return ""
	}
	return me
}

// ─── Misc ────────────────────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "geteam",
		"version": h.version,
	})
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, h.svc.Stats(r.Context()))
}

// ─── Boards ──────────────────────────────────────────────────────────────────

func (h *Handler) listBoards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.ListBoards(r.Context(), recruit.BoardQuery{
		Kind:       q.Get("kind"),
		Category:   q.Get("category"),
		SearchText: q.Get("searchText"),
		Order:      q.Get("order"),
		Offset:     intParam(q.Get("offset"), 0),
		Limit:      intParam(q.Get("limit"), 0),
		ViewerID:   h.viewer(r),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusOK, page)
}

func (h *Handler) getBoard(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetBoard(r.Context(), r.PathValue("id"), h.viewer(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusOK, view)
}

func (h *Handler) createBoard(w http.ResponseWriter, r *http.Request, me string) {
	var in recruit.BoardInput
	if !decode(w, r, &in) {
		return
	}
	b, err := h.svc.CreateBoard(r.Context(), me, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, map[string]string{"id": b.ID})
}

func (h *Handler) updateBoard(w http.ResponseWriter, r *http.Request, me string) {
	var in recruit.BoardInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.UpdateBoard(r.Context(), me, r.PathValue("id"), in); err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusOK, nil)
}

func (h *Handler) deleteBoard(w http.ResponseWriter, r *http.Request, me string) {
	if err := h.svc.DeleteBoard(r.Context(), me, r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusOK, nil)
}

func (h *Handler) createTeam(w http.ResponseWriter, r *http.Request, me string) {
	var in recruit.TeamInput
	if !decode(w, r, &in) {
		return
	}
	team, err := h.svc.CreateTeam(r.Context(), me, r.PathValue("id"), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, team)
}

// ─── Applications ────────────────────────────────────────────────────────────

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request, me string) {
	q := r.URL.Query()
	page, err := h.svc.ListApplications(r.Context(), me, recruit.ApplicationQuery{
		Kind:       q.Get("kind"),
		Status:     q.Get("status"),
		IsAccepted: boolParam(q.Get("is_accepted")),
		Active:     boolParam(q.Get("active")),
		Offset:     intParam(q.Get("offset"), 0),
		Limit:      intParam(q.Get("limit"), 0),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusOK, page)
}

func (h *Handler) listBoardApplications(w http.ResponseWriter, r *http.Request, me string) {
	page, err := h.svc.ListBoardApplications(r.Context(), me, r.PathValue("boardId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusOK, page)
}

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request, me string) {
	var in recruit.ApplicationInput
	if !decode(w, r, &in) {
		return
	}
	a, err := h.svc.CreateApplication(r.Context(), me, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusCreated, map[string]string{"id": a.ID})
}

func (h *Handler) acceptApplication(w http.ResponseWriter, r *http.Request, me string) {
	err := h.svc.AcceptApplication(r.Context(), me, r.PathValue("boardId"), r.PathValue("applicationId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonOK(w, http.StatusOK, nil)
}

func (h *Handler) deleteApplication(w http.ResponseWriter, r *http.Request, me string) {
	res, err := h.svc.DeleteApplication(r.Context(), me, r.PathValue("boardId"), r.PathValue("applicationId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	switch res {
	case recruit.DeleteBlocked:
		jsonError(w, http.StatusConflict, recruit.CodeWithdrawalBlocked,
			"applications can no longer be withdrawn from this board")
	case recruit.DeleteNotFound:
		h.fail(w, recruit.ErrNotFound)
	default:
		jsonOK(w, http.StatusOK, nil)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// fail writes err with the status its outcome maps to.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var status int
	switch recruit.Classify(err) {
	case recruit.OutcomeValidation:
		status = http.StatusBadRequest
	case recruit.OutcomeNotFound:
		status = http.StatusNotFound
	case recruit.OutcomeConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		var ie *recruit.InternalError
		if !errors.As(err, &ie) {
			h.log.Error("unclassified error", "err", err)
		}
	}
	jsonError(w, status, recruit.Code(err), recruit.Description(err))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, http.StatusBadRequest, "ERR_INVALID_PARAM", "invalid JSON body")
		return false
	}
	return true
}

// intParam parses a non-negative integer, falling back to def.
func intParam(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// boolParam returns nil for an absent or unparsable flag.
func boolParam(raw string) *bool {
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

func jsonOK(w http.ResponseWriter, status int, result any) {
	body := map[string]any{"success": true}
	if result != nil {
		body["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "description": description})
}
