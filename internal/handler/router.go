package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
	"github.com/aisuru/companion/backend/internal/handler/chat"
	companionHandler "github.com/aisuru/companion/backend/internal/handler/companion"
	"github.com/aisuru/companion/backend/internal/handler/speech"
	"github.com/aisuru/companion/backend/internal/handler/stream"
	"github.com/aisuru/companion/backend/internal/handler/voice"
	middlewarePkg "github.com/aisuru/companion/backend/internal/middleware"
	companionModel "github.com/aisuru/companion/backend/internal/model/companion"
	chatService "github.com/aisuru/companion/backend/internal/service/chat"
	speechService "github.com/aisuru/companion/backend/internal/service/speech"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	Companions  companionModel.Store
	Chats       *chatService.Service
	Synthesizer speechService.Synthesizer
	// Transcriber nil disables voice input.
	Transcriber speechService.Transcriber
	// Format of stored voice payloads.
	Format pcm.Format
	// InputFormat describes raw PCM recorded by clients.
	InputFormat pcm.Format
	// PaceAudio streams WebSocket audio in real time.
	PaceAudio bool
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		companionHandler.New(deps.Companions).RegisterRoutes(api)
		chat.New(deps.Chats, deps.Format).RegisterRoutes(api)
		stream.New(deps.Chats).RegisterRoutes(api)
		voice.New(deps.Chats, voice.Options{
			Format:      deps.Format,
			Pace:        deps.PaceAudio,
			Transcriber: deps.Transcriber,
			InputFormat: deps.InputFormat,
		}).RegisterRoutes(api)
		speech.New(deps.Synthesizer, deps.Format).WithTranscriber(deps.Transcriber, deps.InputFormat).RegisterRoutes(api)
	})

	return r
}
