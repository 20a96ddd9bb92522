package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want chat.Annotation
	}{
		{
			name: "emotion and gesture",
			raw:  "*Blushing* *Pouting* \"It's not like I wanted to talk to you!\"",
			want: chat.Annotation{
				CleanedText: "\"It's not like I wanted to talk to you!\"",
				Emotion:     "Blushing",
				Gesture:     "Pouting",
			},
		},
		{
			name: "no markers",
			raw:  "Hello there, how are you?",
			want: chat.Annotation{CleanedText: "Hello there, how are you?"},
		},
		{
			name: "no markers is trimmed",
			raw:  "  Hi!\n",
			want: chat.Annotation{CleanedText: "Hi!"},
		},
		{
			name: "single marker yields no gesture",
			raw:  "*Happy* Let's go to the park!",
			want: chat.Annotation{CleanedText: "Let's go to the park!", Emotion: "Happy"},
		},
		{
			name: "marker in the middle",
			raw:  "Um... *looks down shyly* thank you.",
			want: chat.Annotation{CleanedText: "Um...  thank you.", Emotion: "looks down shyly"},
		},
		{
			name: "third marker ignored but stripped",
			raw:  "*Happy* *Dancing* *Waving* Yay!",
			want: chat.Annotation{CleanedText: "Yay!", Emotion: "Happy", Gesture: "Dancing"},
		},
		{
			name: "repeated value still fills the second slot",
			raw:  "*Happy* *Happy* ok",
			want: chat.Annotation{CleanedText: "ok", Emotion: "Happy", Gesture: "Happy"},
		},
		{
			name: "dangling asterisk stays visible",
			raw:  "*Angry* Baka * idiot",
			want: chat.Annotation{CleanedText: "Baka * idiot", Emotion: "Angry"},
		},
		{
			name: "marker does not span lines",
			raw:  "5 * 3\nis *Excited* fifteen",
			want: chat.Annotation{CleanedText: "5 * 3\nis  fifteen", Emotion: "Excited"},
		},
		{
			name: "empty marker takes no slot",
			raw:  "** *Sad* sigh",
			want: chat.Annotation{CleanedText: "sigh", Emotion: "Sad"},
		},
		{
			name: "marker value is trimmed",
			raw:  "* Happy * hi",
			want: chat.Annotation{CleanedText: "hi", Emotion: "Happy"},
		},
		{
			name: "markers only",
			raw:  "*Blushing*",
			want: chat.Annotation{CleanedText: "", Emotion: "Blushing"},
		},
		{
			name: "empty input",
			raw:  "",
			want: chat.Annotation{},
		},
		{
			name: "multibyte text",
			raw:  "*照れる* ありがとう",
			want: chat.Annotation{CleanedText: "ありがとう", Emotion: "照れる"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.raw))
		})
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	raw := "*Happy* *Waving* Hi!"
	assert.Equal(t, Extract(raw), Extract(raw))
}

func TestDisplayText(t *testing.T) {
	assert.Equal(t, Placeholder, DisplayText(""))
	assert.Equal(t, Placeholder, DisplayText("   "))
	assert.Equal(t, "hi", DisplayText("hi"))
}

func TestStrip(t *testing.T) {
	assert.Equal(t, "Good morning!", Strip("*yawns* Good morning! *stretches*"))
}
