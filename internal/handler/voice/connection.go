package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aisuru/companion/backend/internal/audio/playback"
	chatHandler "github.com/aisuru/companion/backend/internal/handler/chat"
	chatService "github.com/aisuru/companion/backend/internal/service/chat"
	speechsvc "github.com/aisuru/companion/backend/internal/service/speech"
)

const (
	sendTimeout       = 2 * time.Minute
	transcribeTimeout = 30 * time.Second
	// maxSpeechBytes 约为 16 kHz 单声道下五分钟的录音。
	maxSpeechBytes = 10 << 20
)

// 客户端发来的消息类型。
const (
	TypeMessage = "message"
	TypePlay    = "play"
	TypeReset   = "reset"
	TypeSpeech  = "speech"
)

// 服务端下发的消息类型，会话事件类型之外的部分。
const (
	TypeConnected  = "connected"
	TypePlayback   = "playback"
	TypeAudio      = "audio"
	TypeTranscript = "transcript"
	TypeError      = "error"
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 用户发送的文本消息
type TextMessage struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

// PlayMessage 请求播放某条回复的语音
type PlayMessage struct {
	TurnID string `json:"turnId"`
}

// SpeechMessage 语音输入分片。AudioData 为空时只更新参数；
// Format 为空表示原始 PCM，与二进制帧相同。IsFinal 触发识别。
type SpeechMessage struct {
	AudioData []byte `json:"audioData"`
	Format    string `json:"format"`
	Language  string `json:"language"`
	IsFinal   bool   `json:"isFinal"`
}

// OutgoingMessage 下发给客户端的 JSON 消息
type OutgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ConnectedData 连接建立后发送一次
type ConnectedData struct {
	CompanionID string                 `json:"companionId"`
	Language    string                 `json:"language"`
	Typing      bool                   `json:"typing"`
	Turns       []chatService.TurnView `json:"turns"`
}

// PlaybackData 播放状态变化
type PlaybackData struct {
	TurnID  string `json:"turnId"`
	Playing bool   `json:"playing"`
}

// AudioData 在一段语音的二进制帧之前发送
type AudioData struct {
	SampleRate int `json:"sampleRate"`
	Channels   int `json:"channels"`
	Frames     int `json:"frames"`
}

// TranscriptData 语音识别结果。Text 非空时会作为用户消息发送。
type TranscriptData struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// ErrorData 描述失败的请求
type ErrorData struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

type connection struct {
	ctx    context.Context
	opts   Options
	ws     *websocket.Conn
	sess   *chatService.Session
	logger zerolog.Logger
	device *playback.Device

	writeMu sync.Mutex

	mu      sync.Mutex
	players map[string]*playback.Player

	// speech 只在 readLoop 中访问。
	speech     bytes.Buffer
	speechMIME string
	speechLang string
}

func newConnection(ctx context.Context, opts Options, ws *websocket.Conn, sess *chatService.Session) *connection {
	c := &connection{
		ctx:  ctx,
		opts: opts,
		ws:   ws,
		sess: sess,
		logger: log.With().
			Str("component", "voice").
			Str("session", sess.Key().String()).
			Logger(),
		players: make(map[string]*playback.Player),
	}
	c.device = playback.NewDevice(&frameSink{conn: c})
	return c
}

func (c *connection) readLoop() {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		// 二进制帧为原始 PCM 录音。
		if kind == websocket.BinaryMessage {
			c.bufferSpeech(data, "")
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message", 0)
			continue
		}
		c.handleMessage(&msg)
	}
}

func (c *connection) handleMessage(msg *inboundMessage) {
	switch msg.Type {
	case TypeMessage:
		var in TextMessage
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			c.sendError("invalid message payload", 0)
			return
		}
		go c.send(in)
	case TypePlay:
		var in PlayMessage
		if err := json.Unmarshal(msg.Data, &in); err != nil || in.TurnID == "" {
			c.sendError("invalid play payload", 0)
			return
		}
		c.play(in.TurnID)
	case TypeSpeech:
		var in SpeechMessage
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			c.sendError("invalid speech payload", 0)
			return
		}
		c.handleSpeech(in)
	case TypeReset:
		c.speech.Reset()
		if err := c.sess.Reset(c.ctx); err != nil {
			status, message := chatHandler.ErrorStatus(err)
			c.sendError(message, status)
		}
	default:
		c.sendError("unknown message type: "+msg.Type, 0)
	}
}

func (c *connection) handleSpeech(in SpeechMessage) {
	if in.Language != "" {
		c.speechLang = in.Language
	}
	if len(in.AudioData) > 0 && !c.bufferSpeech(in.AudioData, in.Format) {
		return
	}
	if !in.IsFinal {
		return
	}

	audio := append([]byte(nil), c.speech.Bytes()...)
	mimeType := c.speechMIME
	c.speech.Reset()
	c.speechMIME = ""
	if len(audio) == 0 {
		return
	}
	go c.transcribe(audio, mimeType, c.speechLang)
}

// bufferSpeech 累积录音分片。切换格式或超出上限时丢弃已缓存的内容。
func (c *connection) bufferSpeech(data []byte, format string) bool {
	mimeType := speechMIMEType(format)
	if c.speech.Len() > 0 && mimeType != c.speechMIME {
		c.logger.Debug().Str("from", c.speechMIME).Str("to", mimeType).Msg("speech format changed, dropping buffered audio")
		c.speech.Reset()
	}
	if c.speech.Len()+len(data) > maxSpeechBytes {
		c.speech.Reset()
		c.sendError("speech recording too long", 413)
		return false
	}
	c.speechMIME = mimeType
	c.speech.Write(data)
	return true
}

// transcribe 识别录音，把结果下发给客户端后作为用户消息发送。
func (c *connection) transcribe(audio []byte, mimeType, language string) {
	if c.opts.Transcriber == nil {
		c.sendError("speech recognition disabled", 503)
		return
	}

	if mimeType == "" {
		wav, err := speechsvc.EncodeWAV(c.opts.InputFormat, audio)
		if err != nil {
			c.sendError("speech recording is empty", 400)
			return
		}
		audio, mimeType = wav, "audio/wav"
	}
	if language == "" {
		language = c.sess.Language()
	}

	ctx, cancel := context.WithTimeout(c.ctx, transcribeTimeout)
	defer cancel()
	text, err := c.opts.Transcriber.Transcribe(ctx, audio, mimeType, language)
	if err != nil {
		if c.ctx.Err() == nil {
			c.logger.Error().Err(err).Str("mime", mimeType).Msg("speech recognition failed")
			c.sendError("speech recognition failed", 502)
		}
		return
	}

	text = strings.TrimSpace(text)
	c.writeJSON(TypeTranscript, TranscriptData{Text: text, IsFinal: true})
	if text == "" {
		return
	}
	c.send(TextMessage{Text: text})
}

// speechMIMEType 将客户端声明的格式映射为 MIME 类型，原始 PCM 返回空串。
func speechMIMEType(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", "pcm", "raw", "l16":
		return ""
	}
	if strings.Contains(format, "/") {
		return format
	}
	return speechsvc.InferMIMEType("speech." + format)
}

// send 发送用户消息。回复通过会话事件送达客户端，这里只上报失败。
func (c *connection) send(in TextMessage) {
	// 连接断开后回复仍属于聊天记录。
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), sendTimeout)
	defer cancel()
	_, err := c.sess.Send(ctx, chatService.SendInput{Text: in.Text, ImageRef: in.ImageURL})
	if err == nil || errors.Is(err, context.Canceled) || c.ctx.Err() != nil {
		return
	}
	status, message := chatHandler.ErrorStatus(err)
	c.sendError(message, status)
}

func (c *connection) forwardEvents(events <-chan chatService.Event, cancel context.CancelFunc) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				// 会话已关闭，连接没有可服务的内容了。
				c.writeClose("session closed")
				cancel()
				c.ws.SetReadDeadline(time.Now())
				return
			}
			c.writeJSON(string(evt.Type), evt)
			if evt.Type == chatService.EventTurn && evt.Turn != nil && evt.Turn.Autoplay {
				c.play(evt.Turn.ID)
			}
		}
	}
}

func (c *connection) sendConnected() {
	turns := c.sess.Render()
	if turns == nil {
		turns = []chatService.TurnView{}
	}
	c.writeJSON(TypeConnected, ConnectedData{
		CompanionID: c.sess.Key().CompanionID,
		Language:    c.sess.Language(),
		Typing:      c.sess.IsTyping(),
		Turns:       turns,
	})
	for _, t := range turns {
		if t.Autoplay {
			c.play(t.ID)
		}
	}
}

func (c *connection) sendError(message string, code int) {
	c.writeJSON(TypeError, ErrorData{Message: message, Code: code})
}

func (c *connection) writeJSON(msgType string, data interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	msg := OutgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msgType).Msg("websocket write failed")
	}
}

func (c *connection) writeBinary(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (c *connection) writeClose(reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("websocket close failed")
	}
}

func (c *connection) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
