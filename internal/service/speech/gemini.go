package speech

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/aisuru/companion/backend/internal/analysis/annotation"
	"github.com/aisuru/companion/backend/internal/audio/pcm"
)

// GeminiSynthesizer 调用 Gemini TTS 模型，返回 24 kHz 单声道小端原始 PCM。
type GeminiSynthesizer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	format  pcm.Format
}

// NewGeminiSynthesizer 基于已有客户端创建合成器。timeout 为 0 时不设单次超时。
func NewGeminiSynthesizer(client *genai.Client, model string, timeout time.Duration, format pcm.Format) *GeminiSynthesizer {
	return &GeminiSynthesizer{client: client, model: model, timeout: timeout, format: format}
}

// Synthesize 实现 Synthesizer，朗读前去掉文本中的标记。
func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text, voice string) (string, error) {
	text = annotation.Strip(text)
	if text == "" {
		return "", nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(text)}}},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: ResolveVoice(voice)},
				},
			},
		})
	if err != nil {
		return "", errors.Wrap(err, "gemini synthesize speech")
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return "", nil
	}

	if rate, ok := sampleRate(blob.MIMEType); ok && rate != s.format.Rate() {
		log.Warn().
			Str("component", "speech").
			Str("mime", blob.MIMEType).
			Int("expected_rate", s.format.Rate()).
			Msg("synthesized audio sample rate differs from playback format")
	}

	log.Debug().
		Str("component", "speech").
		Str("voice", ResolveVoice(voice)).
		Dur("duration", s.format.Duration(s.format.Frames(len(blob.Data)))).
		Msg("synthesized speech")
	return pcm.EncodePayload(blob.Data), nil
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}

// sampleRate 解析 MIME 类型中的 rate 参数，例如 "audio/L16;codec=pcm;rate=24000"。
func sampleRate(mime string) (int, bool) {
	for _, param := range strings.Split(mime, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		rate, err := strconv.Atoi(value)
		if err != nil {
			return 0, false
		}
		return rate, true
	}
	return 0, false
}
