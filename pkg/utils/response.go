package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
)

// ErrorBody 错误响应体
type ErrorBody struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind,omitempty"`
	View  any         `json:"view,omitempty"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Error: message})
}

// RespondAppError 按错误类型映射状态码，view 非空时一并返回
func RespondAppError(w http.ResponseWriter, err error, view any) {
	kind := apperr.KindOf(err)
	body := ErrorBody{Error: err.Error(), Kind: kind, View: view}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Message != "" && kind != apperr.Upstream {
		body.Error = appErr.Message
	}
	if kind == apperr.Internal {
		log.Error("internal error", "err", err)
		body.Error = "internal error"
	}

	RespondJSON(w, StatusForKind(kind), body)
}

// StatusForKind 错误类型对应的HTTP状态码
func StatusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Upstream:
		return http.StatusBadGateway
	case apperr.Configuration:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
