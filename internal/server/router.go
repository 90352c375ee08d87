package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maplepath-ai/maplepath/internal/api"
	"github.com/maplepath-ai/maplepath/internal/api/handlers"
	"github.com/maplepath-ai/maplepath/internal/api/middleware"
)

type RouterConfig struct {
	RetrievalHandler *handlers.RetrievalHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/retrieve", cfg.RetrievalHandler.Retrieve)
	r.Post("/retrieve/context", cfg.RetrievalHandler.Context)
	r.Get("/documents/{chunkID}/source", cfg.RetrievalHandler.SourceDocument)

	return r
}
