package voice

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/affirmation-studio/backend/internal/model/speech"
	studioService "github.com/zhouzirui/affirmation-studio/backend/internal/service/studio"
	"github.com/zhouzirui/affirmation-studio/backend/pkg/utils"
)

// Catalog 启动时加载的声音目录
type Catalog interface {
	Voices() []speech.Voice
	Available() bool
	LoadedAt() time.Time
	Err() error
}

// Handler 声音列表处理器
type Handler struct {
	catalog Catalog
}

// New 创建声音处理器
func New(catalog Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// RegisterRoutes 注册声音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/voices", h.handleList)
}

type voiceEntry struct {
	speech.Voice
	Label string `json:"label"`
}

type listResponse struct {
	Voices      []voiceEntry `json:"voices"`
	Available   bool         `json:"available"`
	Placeholder string       `json:"placeholder,omitempty"`
	LoadError   string       `json:"loadError,omitempty"`
	LoadedAt    time.Time    `json:"loadedAt"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	voices := h.catalog.Voices()

	resp := listResponse{
		Voices:    make([]voiceEntry, 0, len(voices)),
		Available: h.catalog.Available(),
		LoadedAt:  h.catalog.LoadedAt(),
	}
	for _, v := range voices {
		resp.Voices = append(resp.Voices, voiceEntry{Voice: v, Label: v.Label()})
	}
	if !resp.Available {
		resp.Placeholder = studioService.NoVoicesLabel
	}
	if err := h.catalog.Err(); err != nil {
		resp.LoadError = err.Error()
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}
