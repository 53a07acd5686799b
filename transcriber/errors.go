package transcriber

import (
	"errors"

	"github.com/blazeiburgess/WaoN/midi"
	"github.com/blazeiburgess/WaoN/transcode"
	"github.com/blazeiburgess/WaoN/transcriber/config"
)

var (
	// ErrInvalidConfig is returned for configurations that violate an
	// analysis invariant. Nothing is allocated when it is returned.
	ErrInvalidConfig = config.ErrInvalidConfig
	// ErrResource is returned when a transform plan or buffer cannot be set up.
	ErrResource = errors.New("waon: resource error")
	// ErrInput is returned for unreadable, undecodable or unsupported input.
	ErrInput = transcode.ErrInvalidInput
	// ErrOutput is returned when the MIDI file or report cannot be written.
	ErrOutput = midi.ErrOutput
)
