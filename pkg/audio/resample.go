package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// pcm16Scale maps 16-bit samples onto [-1, 1) and back without a gain change.
const pcm16Scale = 32768.0

// resample converts every channel of shape from one sample rate to another. Mono and
// Stereo keep their variant; each channel runs through its own resampler.
func resample(shape Shape, from int, to int) (Shape, error) {
	if from == to {
		return shape, nil
	}
	switch s := shape.(type) {
	case Mono:
		out, err := resampleChannel(s.Samples, from, to)
		if err != nil {
			return nil, err
		}
		return Mono{Samples: out}, nil
	case Stereo:
		left, err := resampleChannel(s.Data[0], from, to)
		if err != nil {
			return nil, err
		}
		right, err := resampleChannel(s.Data[1], from, to)
		if err != nil {
			return nil, err
		}
		// Both channels must stay the same length for interleaving.
		n := min(len(left), len(right))
		return Stereo{Data: [2][]int{left[:n], right[:n]}}, nil
	default:
		return nil, fmt.Errorf("%w: cannot resample %T", ErrUnsupportedAudioShape, shape)
	}
}

func resampleChannel(samples []int, from int, to int) ([]int, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler %d->%d: %w", from, to, err)
	}

	output, err := r.Process(pcmToFloat(samples))
	if err != nil {
		return nil, fmt.Errorf("resample %d->%d: %w", from, to, err)
	}
	// Flush drains the filter delay line.
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush resampler %d->%d: %w", from, to, err)
	}
	output = append(output, tail...)

	return floatToPCM(output), nil
}

func pcmToFloat(samples []int) []float64 {
	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = float64(v) / pcm16Scale
	}
	return out
}

func floatToPCM(samples []float64) []int {
	out := make([]int, len(samples))
	for i, v := range samples {
		out[i] = clamp16(int(math.Round(v * pcm16Scale)))
	}
	return out
}
