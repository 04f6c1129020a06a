package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
)

const DefaultMaxUploadBytes = 50 << 20

// Normalizer turns raw samples or container audio into one canonical WAV file in a Store.
type Normalizer struct {
	store      *Store
	transcoder Transcoder
	maxBytes   int64
	targetRate int
}

type NormalizerOption func(*Normalizer)

// WithTranscoder enables non-WAV inputs.
func WithTranscoder(t Transcoder) NormalizerOption {
	return func(n *Normalizer) {
		n.transcoder = t
	}
}

func WithMaxBytes(limit int64) NormalizerOption {
	return func(n *Normalizer) {
		if limit > 0 {
			n.maxBytes = limit
		}
	}
}

// WithTargetSampleRate resamples every input to rate before it is written. Zero keeps the
// input rate.
func WithTargetSampleRate(rate int) NormalizerOption {
	return func(n *Normalizer) {
		if rate > 0 {
			n.targetRate = rate
		}
	}
}

func NewNormalizer(store *Store, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{store: store, maxBytes: DefaultMaxUploadBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

func (n *Normalizer) Store() *Store {
	return n.store
}

// NormalizeSamples classifies raw and writes it. Unsupported shapes fail before any file
// is created.
func (n *Normalizer) NormalizeSamples(ctx context.Context, raw RawAudio) (model.AudioHandle, error) {
	log := logging.NewLogger(ctx)
	if raw.SampleRate <= 0 {
		err := fmt.Errorf("%w: got %d", ErrInvalidSampleRate, raw.SampleRate)
		log.Errorf("error: %v", err)
		return model.AudioHandle{}, err
	}

	shape := Classify(raw)
	if unsupported, ok := shape.(Unsupported); ok {
		log.Errorf("error: %v", unsupported)
		return model.AudioHandle{}, unsupported
	}

	rate := raw.SampleRate
	if n.targetRate > 0 && n.targetRate != rate {
		resampled, err := resample(shape, rate, n.targetRate)
		if err != nil {
			log.Errorf("error: %v", err)
			return model.AudioHandle{}, err
		}
		if resampled.Frames() == 0 {
			err = Unsupported{Dims: raw.Shape, Reason: "no frames after resampling"}
			log.Errorf("error: %v", err)
			return model.AudioHandle{}, err
		}
		shape, rate = resampled, n.targetRate
	}
	return n.store.Save(ctx, shape, rate)
}

// NormalizeStream decodes container audio from r, then normalizes the decoded samples.
func (n *Normalizer) NormalizeStream(ctx context.Context, r io.Reader, filename string) (model.AudioHandle, error) {
	raw, err := n.Decode(ctx, r, filename)
	if err != nil {
		return model.AudioHandle{}, err
	}
	return n.NormalizeSamples(ctx, raw)
}

// Decode reads the whole stream and returns its samples. WAV is decoded natively,
// anything else goes through the transcoder.
func (n *Normalizer) Decode(ctx context.Context, r io.Reader, filename string) (RawAudio, error) {
	log := logging.NewLogger(ctx)
	data, err := io.ReadAll(io.LimitReader(r, n.maxBytes+1))
	if err != nil {
		err = fmt.Errorf("%w: read input: %v", ErrDecode, err)
		log.Errorf("error: %v", err)
		return RawAudio{}, err
	}
	if int64(len(data)) > n.maxBytes {
		err = fmt.Errorf("%w: limit is %d bytes", ErrAudioTooLarge, n.maxBytes)
		log.Errorf("error: %v", err)
		return RawAudio{}, err
	}
	if len(data) == 0 {
		err = fmt.Errorf("%w: empty input", ErrDecode)
		log.Errorf("error: %v", err)
		return RawAudio{}, err
	}

	if isWAV(data) {
		raw, err := decodeWAV(data)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, errNeedsTranscode) {
			log.Errorf("error: %v", err)
			return RawAudio{}, err
		}
	}

	if n.transcoder == nil {
		err = fmt.Errorf("%w: %q is not PCM WAV: %v", ErrDecode, filename, ErrTranscoderUnavailable)
		log.Errorf("error: %v", err)
		return RawAudio{}, err
	}

	converted, err := n.transcoder.Transcode(ctx, bytes.NewReader(data), filename)
	if err != nil {
		if !errors.Is(err, ErrDecode) {
			err = fmt.Errorf("%w: %v", ErrDecode, err)
		}
		log.Errorf("error: %v", err)
		return RawAudio{}, err
	}

	raw, err := decodeWAV(converted)
	if err != nil {
		if errors.Is(err, errNeedsTranscode) {
			err = fmt.Errorf("%w: transcoder produced non-PCM output", ErrDecode)
		}
		log.Errorf("error: %v", err)
		return RawAudio{}, err
	}
	return raw, nil
}
