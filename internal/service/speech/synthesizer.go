package speech

import "context"

// Synthesizer 将回复文本合成为编码后的 PCM 载荷。返回空载荷且无错误表示该回复没有语音。
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (string, error)
}

// SynthesizerFunc 将函数适配为 Synthesizer。
type SynthesizerFunc func(ctx context.Context, text, voice string) (string, error)

// Synthesize 调用 f。
func (f SynthesizerFunc) Synthesize(ctx context.Context, text, voice string) (string, error) {
	return f(ctx, text, voice)
}

// Disabled 从不产生语音。
type Disabled struct{}

// Synthesize 实现 Synthesizer。
func (Disabled) Synthesize(context.Context, string, string) (string, error) {
	return "", nil
}
