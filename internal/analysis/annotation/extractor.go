// Package annotation pulls stage-direction markers such as *Happy* out of a
// companion reply, leaving text that is fit for display and speech synthesis.
package annotation

import (
	"strings"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

// Placeholder is shown when a reply consisted of markers only.
const Placeholder = "..."

const delimiter = '*'

type scanState int

const (
	outsideMarker scanState = iota
	insideMarker
)

// Extract splits raw into cleaned text plus the emotion and gesture markers.
//
// The first marker becomes the emotion, the second the gesture; any further
// markers are removed from the text and otherwise ignored. Marker values are
// not checked against a vocabulary. A marker never spans a line break, and an
// asterisk without a partner on the same line is kept as literal text.
func Extract(raw string) chat.Annotation {
	var (
		text    strings.Builder
		marker  strings.Builder
		markers []string
		state   = outsideMarker
	)
	text.Grow(len(raw))

	for _, r := range raw {
		switch state {
		case outsideMarker:
			if r == delimiter {
				state = insideMarker
				marker.Reset()
				continue
			}
			text.WriteRune(r)
		case insideMarker:
			switch r {
			case delimiter:
				if value := strings.TrimSpace(marker.String()); value != "" {
					markers = append(markers, value)
				}
				state = outsideMarker
			case '\n':
				text.WriteRune(delimiter)
				text.WriteString(marker.String())
				text.WriteRune(r)
				state = outsideMarker
			default:
				marker.WriteRune(r)
			}
		}
	}
	if state == insideMarker {
		text.WriteRune(delimiter)
		text.WriteString(marker.String())
	}

	result := chat.Annotation{CleanedText: strings.TrimSpace(text.String())}
	if len(markers) > 0 {
		result.Emotion = markers[0]
	}
	if len(markers) > 1 {
		result.Gesture = markers[1]
	}
	return result
}

// DisplayText substitutes Placeholder for an empty cleaned reply.
func DisplayText(cleaned string) string {
	if strings.TrimSpace(cleaned) == "" {
		return Placeholder
	}
	return cleaned
}

// Strip removes every marker span from text. Speech synthesis uses it so that
// stage directions are never read aloud.
func Strip(text string) string {
	return Extract(text).CleanedText
}
