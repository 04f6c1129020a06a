package audio

import (
	"fmt"
	"strings"
)

// RawAudio is audio as a capture device or decoder hands it over: a sample rate plus a
// row-major sample array described by Shape.
type RawAudio struct {
	SampleRate int   `json:"sample_rate"`
	Shape      []int `json:"shape"`
	Samples    []int `json:"samples"`
}

// Shape is the classified form of RawAudio. It is one of Mono, Stereo or Unsupported.
type Shape interface {
	Channels() int
	Frames() int
	isShape()
}

type Mono struct {
	Samples []int
}

// Stereo holds channel-major samples: Data[0] is left, Data[1] is right.
type Stereo struct {
	Data [2][]int
}

type Unsupported struct {
	Dims   []int
	Reason string
}

func (Mono) isShape()        {}
func (Stereo) isShape()      {}
func (Unsupported) isShape() {}

func (m Mono) Channels() int { return 1 }
func (m Mono) Frames() int   { return len(m.Samples) }

func (s Stereo) Channels() int { return 2 }
func (s Stereo) Frames() int   { return len(s.Data[0]) }

func (u Unsupported) Channels() int { return 0 }
func (u Unsupported) Frames() int   { return 0 }

func (u Unsupported) Error() string {
	return fmt.Sprintf("%s: shape %s: %s", ErrUnsupportedAudioShape, formatDims(u.Dims), u.Reason)
}

func (u Unsupported) Unwrap() error {
	return ErrUnsupportedAudioShape
}

// Classify maps raw samples onto Mono or Stereo. A 2-D input is read as (frames, channels)
// and transposed to channel-major order.
func Classify(raw RawAudio) Shape {
	dims := append([]int(nil), raw.Shape...)
	total := 1
	for _, d := range dims {
		if d < 0 {
			return Unsupported{Dims: dims, Reason: "negative dimension"}
		}
		total *= d
	}
	if len(dims) == 0 {
		return Unsupported{Dims: dims, Reason: "no dimensions"}
	}
	if total != len(raw.Samples) {
		return Unsupported{
			Dims:   dims,
			Reason: fmt.Sprintf("shape describes %d samples but %d were provided", total, len(raw.Samples)),
		}
	}

	switch len(dims) {
	case 1:
		if dims[0] == 0 {
			return Unsupported{Dims: dims, Reason: "no frames"}
		}
		return Mono{Samples: append([]int(nil), raw.Samples...)}
	case 2:
		frames, channels := dims[0], dims[1]
		if frames == 0 {
			return Unsupported{Dims: dims, Reason: "no frames"}
		}
		switch channels {
		case 1:
			return Mono{Samples: append([]int(nil), raw.Samples...)}
		case 2:
			left := make([]int, frames)
			right := make([]int, frames)
			for i := 0; i < frames; i++ {
				left[i] = raw.Samples[i*2]
				right[i] = raw.Samples[i*2+1]
			}
			return Stereo{Data: [2][]int{left, right}}
		default:
			return Unsupported{Dims: dims, Reason: fmt.Sprintf("%d channels", channels)}
		}
	default:
		return Unsupported{Dims: dims, Reason: fmt.Sprintf("%d dimensions", len(dims))}
	}
}

// fromInterleaved builds RawAudio from decoder output.
func fromInterleaved(sampleRate int, channels int, data []int) RawAudio {
	if channels <= 1 {
		return RawAudio{SampleRate: sampleRate, Shape: []int{len(data)}, Samples: data}
	}
	return RawAudio{
		SampleRate: sampleRate,
		Shape:      []int{len(data) / channels, channels},
		Samples:    data[:len(data)/channels*channels],
	}
}

func formatDims(dims []int) string {
	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		parts = append(parts, fmt.Sprint(d))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
