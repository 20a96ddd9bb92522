package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatHandler "github.com/aisuru/companion/backend/internal/handler/chat"
	chatService "github.com/aisuru/companion/backend/internal/service/chat"
	"github.com/aisuru/companion/backend/pkg/utils"
)

// sendTimeout bounds a reply that keeps running after the client went away.
const sendTimeout = 2 * time.Minute

// Handler streams session events for one submission via Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{userID}/{companionID}", h.handleStream)
}

// EndPayload closes a stream.
type EndPayload struct {
	Reply *chatService.TurnView `json:"reply,omitempty"`
	Error string                `json:"error,omitempty"`
	Code  int                   `json:"code,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	query := r.URL.Query()
	sess, err := h.chatSvc.Open(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "companionID"), query.Get("language"))
	if err != nil {
		status, message := chatHandler.ErrorStatus(err)
		utils.RespondError(w, status, message)
		return
	}

	events, cancel := sess.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	type outcome struct {
		result *chatService.SendResult
		err    error
	}
	done := make(chan outcome, 1)
	input := chatService.SendInput{Text: query.Get("message"), ImageRef: query.Get("imageUrl")}
	go func() {
		// The reply belongs to the transcript even if this client disconnects.
		ctx, stop := context.WithTimeout(context.WithoutCancel(r.Context()), sendTimeout)
		defer stop()
		result, err := sess.Send(ctx, input)
		done <- outcome{result: result, err: err}
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := forward(w, flusher, evt); err != nil {
				log.Debug().Err(err).Msg("stream client went away")
				return
			}
		case out := <-done:
			drain(w, flusher, events)
			end := EndPayload{}
			if out.err != nil {
				end.Code, end.Error = chatHandler.ErrorStatus(out.err)
			} else {
				reply := chatService.NewTurnView(out.result.Reply, out.result.Autoplay)
				end.Reply = &reply
			}
			name := "end"
			if out.err != nil {
				name = "error"
			}
			if err := utils.SendSSEEvent(w, flusher, name, end); err != nil {
				log.Debug().Err(err).Msg("stream client went away")
			}
			return
		case <-r.Context().Done():
			return
		}
	}
}

// drain forwards the events already queued when Send returned.
func drain(w http.ResponseWriter, flusher http.Flusher, events <-chan chatService.Event) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := forward(w, flusher, evt); err != nil {
				return
			}
		default:
			return
		}
	}
}

func forward(w http.ResponseWriter, flusher http.Flusher, evt chatService.Event) error {
	return utils.SendSSEEvent(w, flusher, string(evt.Type), evt)
}
