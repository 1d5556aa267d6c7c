package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

type botRequest struct {
	BotID string `json:"botId"`
}

type deleteBotRequest struct {
	AssistantID string `json:"assistantId"`
}

type typingRequest struct {
	BotID    string           `json:"botId"`
	ChatID   string           `json:"chatId"`
	Presence session.Presence `json:"presence,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// entryView is the JSON form of a registry entry.
type entryView struct {
	BotID    string        `json:"botId"`
	State    session.State `json:"state"`
	User     *session.User `json:"user,omitempty"`
	Since    time.Time     `json:"since"`
	HandleID string        `json:"handleId,omitempty"`
}

func newEntryView(e session.Entry) entryView {
	v := entryView{BotID: e.SessionID, State: e.State, User: e.User, Since: e.Since}
	if e.Handle != nil {
		v.HandleID = e.Handle.ID()
	}
	return v
}

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "Socket server is working")
}

func (h *Handler) addBot(w http.ResponseWriter, r *http.Request) {
	var req botRequest
	decodeBody(r, &req)
	if req.BotID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "botId is required."})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.sessions.Start(ctx, req.BotID); err != nil {
		h.requestLog(r).Error("Failed to create whatsapp bot", logger.SessionIDField(req.BotID), logger.ErrorField(err))
		writeText(w, http.StatusInternalServerError, "Failed to create whatsapp bot")
		return
	}
	writeText(w, http.StatusOK, http.StatusText(http.StatusOK))
}

func (h *Handler) deleteBot(w http.ResponseWriter, r *http.Request) {
	var req deleteBotRequest
	decodeBody(r, &req)
	if req.AssistantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "assistantId is required."})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	err := h.sessions.Delete(ctx, req.AssistantID)
	switch {
	case err == nil:
		writeText(w, http.StatusOK, http.StatusText(http.StatusOK))
	case errors.Is(err, session.ErrNotFound):
		writeText(w, http.StatusInternalServerError, notFoundMessage(req.AssistantID))
	default:
		h.requestLog(r).Error("Failed to delete whatsapp bot", logger.SessionIDField(req.AssistantID), logger.ErrorField(err))
		writeText(w, http.StatusInternalServerError, "Failed to delete whatsapp bot")
	}
}

func (h *Handler) restartBot(w http.ResponseWriter, r *http.Request) {
	var req botRequest
	decodeBody(r, &req)
	if req.BotID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "botId is required."})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.sessions.Restart(ctx, req.BotID); err != nil {
		h.requestLog(r).Error("Failed to restart whatsapp bot", logger.SessionIDField(req.BotID), logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, successResponse{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// restartAll starts a paced restart of every stored session and returns
// immediately. Only one batch runs at a time.
func (h *Handler) restartAll(w http.ResponseWriter, r *http.Request) {
	if !h.restartingAll.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "restart already in progress"})
		return
	}

	log := h.requestLog(r)
	ctx := logger.WithCorrelationIDContext(h.background, logger.GetCorrelationIDFromContext(r.Context()))

	h.bg.Add(1)
	go func() {
		defer h.bg.Done()
		defer h.restartingAll.Store(false)

		start := time.Now()
		if err := h.sessions.RestartAll(ctx); err != nil {
			log.Error("Restart of all sessions finished with errors", logger.ErrorField(err))
			return
		}
		log.Info("Restarted all sessions", logger.DurationField("duration", time.Since(start)))
	}()

	writeJSON(w, http.StatusAccepted, successResponse{Success: true})
}

func (h *Handler) typing(w http.ResponseWriter, r *http.Request) {
	var req typingRequest
	decodeBody(r, &req)
	if req.BotID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "botId is required."})
		return
	}
	if req.ChatID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "chatId is required."})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	err := h.sessions.SendPresence(ctx, req.BotID, req.ChatID, req.Presence)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	case errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFoundMessage(req.BotID)})
	case errors.Is(err, session.ErrNotConnected):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Whatsapp instance is not connected yet"})
	default:
		h.requestLog(r).Error("Failed to send presence", logger.SessionIDField(req.BotID), logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, successResponse{Success: false})
	}
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	entries := h.sessions.List()
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) info(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "botId")
	entry, err := h.sessions.Info(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFoundMessage(id)})
		return
	}
	writeJSON(w, http.StatusOK, newEntryView(entry))
}

func (h *Handler) latestQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "botId")
	if h.qr == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no QR code pending for " + id})
		return
	}
	u, ok := h.qr.Latest(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no QR code pending for " + id})
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) qrStream(w http.ResponseWriter, r *http.Request) {
	if h.qr == nil {
		http.NotFound(w, r)
		return
	}
	h.qr.ServeWS(w, r, chi.URLParam(r, "botId"))
}

func (h *Handler) requestLog(r *http.Request) logger.Logger {
	return logger.GetLoggerFromContext(r.Context(), h.log)
}

func notFoundMessage(id string) string {
	return fmt.Sprintf("Whatsapp instance not found with sessionId: %s", id)
}

// decodeBody reads a JSON body into v. A missing or malformed body leaves v
// zero, which the handlers report as a missing field.
func decodeBody(r *http.Request, v any) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
