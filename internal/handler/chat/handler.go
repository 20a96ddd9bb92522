package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
	chatService "github.com/aisuru/companion/backend/internal/service/chat"
	"github.com/aisuru/companion/backend/pkg/utils"
)

// sendTimeout 限制客户端断开后仍在生成的回复。
const sendTimeout = 2 * time.Minute

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	format  pcm.Format
}

// New 创建聊天处理器，format 描述已保存语音的格式
func New(chatSvc *chatService.Service, format pcm.Format) *Handler {
	return &Handler{chatSvc: chatSvc, format: format}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chats/{userID}/{companionID}", func(r chi.Router) {
		r.Get("/", h.handleGetTranscript)
		r.Post("/open", h.handleOpen)
		r.Post("/messages", h.handleSend)
		r.Post("/reset", h.handleReset)
		r.Post("/close", h.handleClose)
		r.Get("/turns/{turnID}/audio.wav", h.handleTurnAudio)
	})
}

// TranscriptResponse 会话的渲染状态
type TranscriptResponse struct {
	UserID      string                 `json:"userId"`
	CompanionID string                 `json:"companionId"`
	Language    string                 `json:"language"`
	Typing      bool                   `json:"typing"`
	Turns       []chatService.TurnView `json:"turns"`
}

// SendResponse 一次发送追加的消息
type SendResponse struct {
	User  chatService.TurnView  `json:"user"`
	Reply *chatService.TurnView `json:"reply,omitempty"`
	Error string                `json:"error,omitempty"`
}

func renderTranscript(sess *chatService.Session) TranscriptResponse {
	turns := sess.Render()
	if turns == nil {
		turns = []chatService.TurnView{}
	}
	return TranscriptResponse{
		UserID:      sess.Key().UserID,
		CompanionID: sess.Key().CompanionID,
		Language:    sess.Language(),
		Typing:      sess.IsTyping(),
		Turns:       turns,
	}
}

// handleOpen 打开或恢复会话
func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Language string `json:"language"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sess, err := h.chatSvc.Open(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "companionID"), payload.Language)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, renderTranscript(sess))
}

func (h *Handler) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chatSvc.Open(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "companionID"), "")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, renderTranscript(sess))
}

// handleSend 发送消息并等待回复
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text     string `json:"text"`
		ImageURL string `json:"imageUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.chatSvc.Open(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "companionID"), "")
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// 回复属于聊天记录，客户端断开也继续生成。
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), sendTimeout)
	defer cancel()
	result, err := sess.Send(ctx, chatService.SendInput{Text: payload.Text, ImageRef: payload.ImageURL})
	if err != nil {
		status, message := ErrorStatus(err)
		if result == nil {
			utils.RespondError(w, status, message)
			return
		}
		// 回复失败时用户消息仍保留在聊天记录中。
		utils.RespondJSON(w, status, SendResponse{
			User:  chatService.NewTurnView(result.User, false),
			Error: message,
		})
		return
	}

	reply := chatService.NewTurnView(result.Reply, result.Autoplay)
	utils.RespondJSON(w, http.StatusOK, SendResponse{
		User:  chatService.NewTurnView(result.User, false),
		Reply: &reply,
	})
}

// handleReset 清空会话
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chatSvc.Open(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "companionID"), "")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if err := sess.Reset(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, renderTranscript(sess))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if sess, ok := h.chatSvc.Lookup(chi.URLParam(r, "userID"), chi.URLParam(r, "companionID")); ok {
		sess.Close()
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTurnAudio 在服务端解码回复语音并以 WAV 返回
func (h *Handler) handleTurnAudio(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chatSvc.Open(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "companionID"), "")
	if err != nil {
		respondServiceError(w, err)
		return
	}

	turn, ok := sess.Turn(chi.URLParam(r, "turnID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "turn not found")
		return
	}
	if !turn.HasAudio() {
		utils.RespondError(w, http.StatusNotFound, "turn has no audio")
		return
	}

	buf := h.format.DecodePayload(turn.AudioRef)
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if err := buf.WriteWAV(w); err != nil {
		log.Warn().Err(err).Str("turn", turn.ID).Msg("write wav response")
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	status, message := ErrorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("chat request failed")
	}
	utils.RespondError(w, status, message)
}
