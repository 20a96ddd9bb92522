// Package voice 通过 WebSocket 提供聊天会话：会话事件以 JSON 下发，
// 回复语音以二进制 PCM 帧下发，用户录音以二进制帧或 speech 消息上传。
package voice

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
	chatHandler "github.com/aisuru/companion/backend/internal/handler/chat"
	chatService "github.com/aisuru/companion/backend/internal/service/chat"
	speechsvc "github.com/aisuru/companion/backend/internal/service/speech"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Options 调整音频的收发。
type Options struct {
	// Format 为已保存语音的格式。
	Format pcm.Format
	// Chunk 为单个二进制帧承载的音频时长。
	Chunk time.Duration
	// Pace 让每帧按其时长发送，单个连接收到音频的速度不会快于播放速度。
	Pace bool
	// Transcriber 为空时拒绝语音输入。
	Transcriber speechsvc.Transcriber
	// InputFormat 描述客户端上传的原始 PCM。
	InputFormat pcm.Format
}

func (o Options) withDefaults() Options {
	if o.Format.SampleRate == 0 {
		o.Format = pcm.L16Mono24K
	}
	if o.Chunk <= 0 {
		o.Chunk = 200 * time.Millisecond
	}
	if o.InputFormat.SampleRate == 0 {
		o.InputFormat = pcm.Format{SampleRate: 16000, Channels: 1}
	}
	return o
}

// Handler 将聊天会话升级为 WebSocket 连接
type Handler struct {
	chatSvc  *chatService.Service
	opts     Options
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service, opts Options) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		opts:    opts.withDefaults(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{userID}/{companionID}", h.handleWebSocket)
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := h.chatSvc.Open(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "companionID"), r.URL.Query().Get("language"))
	if err != nil {
		status, message := chatHandler.ErrorStatus(err)
		http.Error(w, message, status)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	c := newConnection(ctx, h.opts, ws, sess)
	c.logger.Info().Msg("websocket connected")
	defer c.logger.Info().Msg("websocket disconnected")

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.pingLoop()
	}()
	go func() {
		defer wg.Done()
		c.forwardEvents(events, cancel)
	}()

	c.sendConnected()
	c.readLoop()
	cancel()
	wg.Wait()
}
