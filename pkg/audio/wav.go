package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	canonicalBitDepth = 16
	wavFormatPCM      = 1
	wavMIMEType       = "audio/wav"
)

// errNeedsTranscode marks WAV payloads the native decoder does not handle (8-bit, float).
var errNeedsTranscode = errors.New("wav variant requires transcoding")

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// writeWAV encodes shape as 16-bit PCM, interleaving stereo channels.
func writeWAV(w io.WriteSeeker, shape Shape, sampleRate int) error {
	var data []int
	switch s := shape.(type) {
	case Mono:
		data = make([]int, len(s.Samples))
		for i, v := range s.Samples {
			data[i] = clamp16(v)
		}
	case Stereo:
		frames := s.Frames()
		data = make([]int, frames*2)
		for i := 0; i < frames; i++ {
			data[i*2] = clamp16(s.Data[0][i])
			data[i*2+1] = clamp16(s.Data[1][i])
		}
	case Unsupported:
		return s
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedAudioShape, shape)
	}

	channels := shape.Channels()
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: canonicalBitDepth,
	}

	enc := wav.NewEncoder(w, sampleRate, canonicalBitDepth, channels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// decodeWAV reads a RIFF/WAVE payload into 16-bit interleaved samples.
func decodeWAV(data []byte) (RawAudio, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return RawAudio{}, fmt.Errorf("%w: invalid wav header", ErrDecode)
	}
	if dec.WavAudioFormat != wavFormatPCM || dec.BitDepth < canonicalBitDepth {
		return RawAudio{}, errNeedsTranscode
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return RawAudio{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if buf == nil || buf.Format == nil {
		return RawAudio{}, fmt.Errorf("%w: empty pcm buffer", ErrDecode)
	}

	samples := buf.Data
	if shift := int(dec.BitDepth) - canonicalBitDepth; shift > 0 {
		samples = make([]int, len(buf.Data))
		for i, v := range buf.Data {
			samples[i] = v >> shift
		}
	}

	channels := buf.Format.NumChannels
	if channels == 0 {
		channels = int(dec.NumChans)
	}
	sampleRate := buf.Format.SampleRate
	if sampleRate == 0 {
		sampleRate = int(dec.SampleRate)
	}
	return fromInterleaved(sampleRate, channels, samples), nil
}

func clamp16(v int) int {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return v
}
