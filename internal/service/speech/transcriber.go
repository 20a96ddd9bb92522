package speech

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
)

// ErrNoAudio 表示待识别的音频为空。
var ErrNoAudio = errors.New("no audio to transcribe")

// Transcriber 把一段录音识别为文本。
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error)
}

// TranscriberFunc 将函数适配为 Transcriber。
type TranscriberFunc func(ctx context.Context, audio []byte, mimeType, language string) (string, error)

// Transcribe 调用 f。
func (f TranscriberFunc) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	return f(ctx, audio, mimeType, language)
}

// GeminiTranscriber 通过 Gemini 多模态模型做语音识别，音频以内联数据上传。
type GeminiTranscriber struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiTranscriber 基于已有客户端创建识别器。timeout 为 0 时不设单次超时。
func NewGeminiTranscriber(client *genai.Client, model string, timeout time.Duration) *GeminiTranscriber {
	return &GeminiTranscriber{client: client, model: model, timeout: timeout}
}

// Transcribe 实现 Transcriber。
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoAudio
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{
			genai.NewPartFromText(transcribeInstruction(language)),
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: audio}},
		}}},
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)})
	if err != nil {
		return "", errors.Wrap(err, "gemini transcribe audio")
	}

	text := strings.TrimSpace(resp.Text())
	log.Debug().
		Str("component", "speech").
		Str("mime", mimeType).
		Int("bytes", len(audio)).
		Int("chars", len(text)).
		Msg("transcribed audio")
	return text, nil
}

func transcribeInstruction(language string) string {
	instruction := "Transcribe the speech in this recording verbatim. Reply with the transcript only. Reply with nothing if no one speaks."
	if language = strings.TrimSpace(language); language != "" {
		instruction += " The speaker is most likely using the language with code " + language + "."
	}
	return instruction
}

// EncodeWAV 将原始 PCM 封装为 WAV，供识别接口使用。
func EncodeWAV(format pcm.Format, raw []byte) ([]byte, error) {
	if format.Frames(len(raw)) == 0 {
		return nil, ErrNoAudio
	}
	var buf bytes.Buffer
	if err := format.Decode(raw).WriteWAV(&buf); err != nil {
		return nil, errors.Wrap(err, "encode wav")
	}
	return buf.Bytes(), nil
}

// InferMIMEType 从文件名推断音频的 MIME 类型，无法识别时返回空串。
func InferMIMEType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mp3"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".aac", ".m4a":
		return "audio/aac"
	case ".webm":
		return "audio/webm"
	}
	return ""
}
