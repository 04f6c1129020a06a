package audio

import "errors"

var (
	// ErrUnsupportedAudioShape is returned when samples are neither a mono vector nor a
	// (frames, channels) matrix with one or two channels.
	ErrUnsupportedAudioShape = errors.New("unsupported audio shape")
	// ErrDecode is returned when container audio cannot be parsed.
	ErrDecode = errors.New("audio decode failed")

	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrAudioTooLarge     = errors.New("audio payload exceeds size limit")
)
