package voice

import "github.com/pkg/errors"

var (
	errTurnNotFound = errors.New("turn not found")
	errNoVoice      = errors.New("turn has no voice")
)
