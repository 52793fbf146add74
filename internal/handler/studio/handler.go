package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/affirmation-studio/backend/internal/logging"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/affirmation"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
	studioService "github.com/zhouzirui/affirmation-studio/backend/internal/service/studio"
	"github.com/zhouzirui/affirmation-studio/backend/pkg/utils"
)

const maxBodyBytes = 64 << 10

// Handler 会话与操作的HTTP处理器
type Handler struct {
	ctrl     *studioService.Controller
	conns    *ConnectionManager
	upgrader websocket.Upgrader
}

// New 创建会话处理器
func New(ctrl *studioService.Controller, conns *ConnectionManager) *Handler {
	if conns == nil {
		conns = NewConnectionManager()
	}
	return &Handler{
		ctrl:     ctrl,
		conns:    conns,
		upgrader: newUpgrader(),
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.handleOpen)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleView)
			r.Delete("/", h.handleClose)
			r.Post("/mode", h.handleSwitchMode)
			r.Post("/generate", h.handleGenerate)
			r.Post("/confirm", h.handleConfirm)
			r.Post("/edit", h.handleEdit)
			r.Post("/suggestions/apply", h.handleApplySuggestions)
			r.Post("/synthesize", h.handleSynthesize)
			r.Get("/audio", h.handleAudio)
			r.Get("/ws", h.handleWebSocket)
			r.Get("/events", h.handleEvents)
		})
	})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type generateRequest struct {
	Goal  string `json:"goal"`
	Count int    `json:"count"`
}

type confirmRequest struct {
	Text string `json:"text"`
}

type synthesizeRequest struct {
	VoiceID string `json:"voiceId"`
}

// handleOpen 创建会话
func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var payload modeRequest
	if err := decodeBody(w, r, &payload); err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}

	mode := affirmation.ModeAI
	if payload.Mode != "" {
		parsed, err := affirmation.ParseMode(payload.Mode)
		if err != nil {
			utils.RespondAppError(w, err, nil)
			return
		}
		mode = parsed
	}

	view, err := h.ctrl.Open(r.Context(), mode)
	if err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, view)
}

// handleView 获取会话视图
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := h.ctrl.View(r.Context(), chi.URLParam(r, "sessionID"))
	respond(w, view, err)
}

// handleClose 删除会话并断开推送连接
func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.ctrl.Close(r.Context(), sessionID); err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}
	h.conns.RemoveSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSwitchMode(w http.ResponseWriter, r *http.Request) {
	var payload modeRequest
	if err := decodeBody(w, r, &payload); err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}
	mode, err := affirmation.ParseMode(payload.Mode)
	if err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}

	view, err := h.ctrl.SwitchMode(r.Context(), chi.URLParam(r, "sessionID"), mode)
	respond(w, view, err)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var payload generateRequest
	if err := decodeBody(w, r, &payload); err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}

	view, err := h.ctrl.Generate(providerContext(r), chi.URLParam(r, "sessionID"), payload.Goal, payload.Count)
	respond(w, view, err)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var payload confirmRequest
	if err := decodeBody(w, r, &payload); err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}

	view, err := h.ctrl.Confirm(providerContext(r), chi.URLParam(r, "sessionID"), payload.Text)
	respond(w, view, err)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	view, err := h.ctrl.Edit(r.Context(), chi.URLParam(r, "sessionID"))
	respond(w, view, err)
}

func (h *Handler) handleApplySuggestions(w http.ResponseWriter, r *http.Request) {
	view, err := h.ctrl.ApplySuggestions(r.Context(), chi.URLParam(r, "sessionID"))
	respond(w, view, err)
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var payload synthesizeRequest
	if err := decodeBody(w, r, &payload); err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}

	view, err := h.ctrl.Synthesize(providerContext(r), chi.URLParam(r, "sessionID"), payload.VoiceID)
	respond(w, view, err)
}

// providerContext keeps the request's values but not its cancellation, so
// a provider call that was issued runs to completion or failure even if
// the client goes away.
func providerContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// handleAudio 播放或下载合成的音频，原样透传
func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := h.ctrl.Audio(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}

	disposition := "inline"
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, audio.Filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio.Data); err != nil {
		logging.FromContext(r.Context()).Warn("failed to write audio", "err", err)
	}
}

// respond writes the view, or the error together with the view when the
// session could still be rendered.
func respond(w http.ResponseWriter, view studioService.View, err error) {
	if err != nil {
		var payload any
		if view.SessionID != "" {
			payload = view
		}
		utils.RespondAppError(w, err, payload)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// decodeBody accepts an empty body as the zero payload.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Invalid("decode request", "invalid request body")
	}
	return nil
}
