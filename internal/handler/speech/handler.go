package speech

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
	speechsvc "github.com/aisuru/companion/backend/internal/service/speech"
	"github.com/aisuru/companion/backend/pkg/utils"
)

// maxUploadSize 限制上传录音的大小。
const maxUploadSize = 32 << 20 // 32MB max

// Handler 语音服务的HTTP处理器，提供会话之外的合成试听与语音识别
type Handler struct {
	synth       speechsvc.Synthesizer
	format      pcm.Format
	transcriber speechsvc.Transcriber
	inputFormat pcm.Format
}

// New 创建语音处理器
func New(synth speechsvc.Synthesizer, format pcm.Format) *Handler {
	if synth == nil {
		synth = speechsvc.Disabled{}
	}
	return &Handler{synth: synth, format: format}
}

// WithTranscriber 启用语音识别。input 描述未带容器的原始 PCM 上传。
func (h *Handler) WithTranscriber(tr speechsvc.Transcriber, input pcm.Format) *Handler {
	h.transcriber = tr
	h.inputFormat = input
	return h
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(sr chi.Router) {
		// ASR 端点
		sr.Post("/transcribe", h.handleTranscribe)

		// TTS 端点
		sr.Get("/voices", h.handleVoices)
		sr.Post("/synthesize", h.handleSynthesize)

		// 健康检查
		sr.Get("/health", h.handleHealth)
	})
}

// TranscribeResponse 语音识别结果
type TranscribeResponse struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// SynthesizeRequest 合成单句语音的请求，Text 中的标记不会被读出。
type SynthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	// Output 为 "payload"（默认，base64 data URI）或 "wav"。
	Output string `json:"output"`
}

// SynthesizeResponse 合成结果
type SynthesizeResponse struct {
	Voice      string `json:"voice"`
	Audio      string `json:"audio"`
	Format     string `json:"format"`
	DurationMs int64  `json:"durationMs"`
}

func (h *Handler) enabled() bool {
	_, disabled := h.synth.(speechsvc.Disabled)
	return !disabled
}

func (h *Handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"default": speechsvc.DefaultVoice,
		"voices":  speechsvc.Voices(),
	})
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"enabled":    h.enabled(),
		"format":     h.format.String(),
		"transcribe": h.transcriber != nil,
	})
}

// handleTranscribe 处理语音转文本请求。表单字段 audio 为录音文件，
// 无法从文件名识别格式时按原始 PCM 处理。
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech recognition disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	mimeType := speechsvc.InferMIMEType(header.Filename)
	if mimeType == "" {
		if data, err = speechsvc.EncodeWAV(h.inputFormat, data); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "audio is empty")
			return
		}
		mimeType = "audio/wav"
	}

	language := strings.TrimSpace(r.FormValue("language"))
	text, err := h.transcriber.Transcribe(r.Context(), data, mimeType, language)
	if err != nil {
		log.Error().Err(err).Str("mime", mimeType).Msg("speech recognition failed")
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, TranscribeResponse{Text: text, Language: language})
}

// handleSynthesize 处理文本转语音请求
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if !h.enabled() {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis disabled")
		return
	}

	var req SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	voice := speechsvc.ResolveVoice(req.Voice)
	payload, err := h.synth.Synthesize(r.Context(), req.Text, voice)
	if err != nil {
		log.Error().Err(err).Str("voice", voice).Msg("speech synthesis failed")
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	if payload == "" {
		utils.RespondError(w, http.StatusUnprocessableEntity, "nothing to speak")
		return
	}

	buf := h.format.DecodePayload(payload)
	if req.Output == "wav" {
		w.Header().Set("Content-Type", "audio/wav")
		if err := buf.WriteWAV(w); err != nil {
			log.Warn().Err(err).Msg("write wav response")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, SynthesizeResponse{
		Voice:      voice,
		Audio:      payload,
		Format:     h.format.String(),
		DurationMs: buf.Duration().Milliseconds(),
	})
}
