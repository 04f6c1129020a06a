package assessment

import (
	"errors"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/audio"
)

// Kind distinguishes failures for logging and for mapping onto transport status codes.
type Kind string

const (
	KindUnsupportedAudioShape Kind = "unsupported_audio_shape"
	KindDecode                Kind = "decode_error"
	KindRemoteCall            Kind = "remote_call_error"
	KindInvalidRequest        Kind = "invalid_request"
	KindInternal              Kind = "internal_error"
)

func (k Kind) describe() string {
	switch k {
	case KindUnsupportedAudioShape:
		return "audio must have one or two channels"
	case KindDecode:
		return "audio could not be decoded"
	case KindRemoteCall:
		return "the assessment model call failed"
	case KindInvalidRequest:
		return "invalid request"
	default:
		return "assessment failed"
	}
}

// Error is the only error type Service returns. Error() is the message shown to the user.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.describe()
	}
	return e.Kind.describe() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err, or KindInternal when err did not come from Service.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// audioError classifies a normalizer failure.
func audioError(err error) *Error {
	switch {
	case errors.Is(err, audio.ErrUnsupportedAudioShape):
		return newError(KindUnsupportedAudioShape, err)
	case errors.Is(err, audio.ErrDecode):
		return newError(KindDecode, err)
	case errors.Is(err, audio.ErrInvalidSampleRate), errors.Is(err, audio.ErrAudioTooLarge):
		return newError(KindInvalidRequest, err)
	default:
		return newError(KindInternal, err)
	}
}
