package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/aisuru/companion/backend/internal/model/chat"
	"github.com/aisuru/companion/backend/internal/model/companion"
)

// GenerateRequest carries everything a provider needs for one reply.
type GenerateRequest struct {
	Prompt    string
	History   []chat.Turn
	Companion *companion.Companion
	Language  string
	// ImageRef is an optional image attached to the prompt, usually a data URI.
	ImageRef string
}

// Generator produces the raw reply text for a companion, markers included.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}

// ErrUnavailable is returned by Unavailable.
var ErrUnavailable = errors.New("no ai provider configured")

// Unavailable fails every request. It stands in when no provider has credentials.
type Unavailable struct{}

// Generate implements Generator.
func (Unavailable) Generate(context.Context, GenerateRequest) (string, error) {
	return "", ErrUnavailable
}

// RecentHistory returns at most the last limit turns. A non-positive limit yields none.
func RecentHistory(turns []chat.Turn, limit int) []chat.Turn {
	if limit <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]chat.Turn, len(turns))
	copy(out, turns)
	return out
}

// Image is a decoded inline image attachment.
type Image struct {
	MIMEType string
	Data     []byte
}

const defaultImageMIME = "image/jpeg"

// ParseImage decodes an image reference. Data URIs carry their own MIME type;
// bare base64 is assumed to be JPEG.
func ParseImage(ref string) (Image, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Image{}, false
	}

	mime := defaultImageMIME
	if strings.HasPrefix(ref, "data:") {
		header, payload, ok := strings.Cut(ref, ",")
		if !ok {
			return Image{}, false
		}
		meta := strings.TrimPrefix(header, "data:")
		if kind, _, _ := strings.Cut(meta, ";"); kind != "" {
			mime = kind
		}
		ref = payload
	}

	data, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(ref, "="))
	}
	if err != nil || len(data) == 0 {
		return Image{}, false
	}
	return Image{MIMEType: mime, Data: data}, true
}

// DataURI renders the image back into a data URI.
func (i Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, base64.StdEncoding.EncodeToString(i.Data))
}
