package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/affirmation-studio/backend/internal/handler/studio"
	"github.com/zhouzirui/affirmation-studio/backend/internal/handler/voice"
	middlewarePkg "github.com/zhouzirui/affirmation-studio/backend/internal/middleware"
	speechService "github.com/zhouzirui/affirmation-studio/backend/internal/service/speech"
	studioService "github.com/zhouzirui/affirmation-studio/backend/internal/service/studio"
	"github.com/zhouzirui/affirmation-studio/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(ctrl *studioService.Controller, catalog *speechService.VoiceCatalog, conns *studio.ConnectionManager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	if conns == nil {
		conns = studio.NewConnectionManager()
	}
	studioHandler := studio.New(ctrl, conns)
	voiceHandler := voice.New(catalog)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":          "ok",
				"voices":          len(catalog.Voices()),
				"voicesAvailable": catalog.Available(),
				"voicesLoadedAt":  catalog.LoadedAt(),
				"sessions":        ctrl.Sessions(),
				"connections":     conns.Count(),
			})
		})

		voiceHandler.RegisterRoutes(api)
		studioHandler.RegisterRoutes(api)
	})

	return r
}
