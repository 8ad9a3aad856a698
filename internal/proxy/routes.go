package proxy

import (
	"github.com/go-chi/chi/v5"

	"github.com/vnmchuo/ai-broker/internal/auth"
)

// Mount registers the public API and the admin endpoint on r.
func (h *Handler) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware())
		r.Post("/v1/chat", h.HandleChat)
		r.Post("/v1/image", h.HandleImage)
		r.Post("/v1/tts", h.HandleTTS)
		r.Post("/v1/music", h.HandleMusic)
		r.Get("/v1/balance", h.HandleBalance)
		r.Get("/v1/usage", h.HandleUsage)
	})
	r.Post("/admin/add-credits", h.HandleAddCredits)
}
