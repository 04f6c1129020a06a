package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/suite"
)

type NormalizerSuite struct {
	suite.Suite
	dir        string
	normalizer *Normalizer
}

func TestNormalizerSuite(t *testing.T) {
	suite.Run(t, new(NormalizerSuite))
}

func (s *NormalizerSuite) SetupTest() {
	s.dir = filepath.Join(s.T().TempDir(), "media")
	s.normalizer = NewNormalizer(NewStore(s.dir))
}

func (s *NormalizerSuite) readBack(path string) RawAudio {
	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	raw, err := decodeWAV(data)
	s.Require().NoError(err)
	return raw
}

func (s *NormalizerSuite) files() []string {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	s.Require().NoError(err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (s *NormalizerSuite) wavBytes(sampleRate int, shape Shape) []byte {
	path := filepath.Join(s.T().TempDir(), "fixture.wav")
	f, err := os.Create(path)
	s.Require().NoError(err)
	s.Require().NoError(writeWAV(f, shape, sampleRate))
	s.Require().NoError(f.Close())
	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	return data
}

func sine(frames int) []int {
	out := make([]int, frames)
	for i := range out {
		out[i] = (i%200 - 100) * 100
	}
	return out
}

func (s *NormalizerSuite) TestMonoTwoSecondsAt16kHz() {
	ctx := context.Background()
	samples := sine(32000)

	handle, err := s.normalizer.NormalizeSamples(ctx, RawAudio{SampleRate: 16000, Shape: []int{32000}, Samples: samples})
	s.Require().NoError(err)

	s.Equal(1, handle.Channels)
	s.Equal(16000, handle.SampleRate)
	s.Equal(32000, handle.Frames)
	s.Equal(2*time.Second, handle.Duration())
	s.Equal("audio/wav", handle.MIMEType)
	s.Equal(filepath.Join(s.dir, handle.ID+".wav"), handle.Path)
	s.Len(s.files(), 1)

	raw := s.readBack(handle.Path)
	s.Equal(16000, raw.SampleRate)
	s.Equal([]int{32000}, raw.Shape)
	s.Equal(samples, raw.Samples)
}

func (s *NormalizerSuite) TestStereoRoundTripKeepsChannelsAndRate() {
	ctx := context.Background()
	raw := RawAudio{SampleRate: 44100, Shape: []int{4, 2}, Samples: []int{10, -10, 20, -20, 30, -30, 40, -40}}

	handle, err := s.normalizer.NormalizeSamples(ctx, raw)
	s.Require().NoError(err)
	s.Equal(2, handle.Channels)
	s.Equal(4, handle.Frames)

	back := s.readBack(handle.Path)
	s.Equal(44100, back.SampleRate)
	s.Equal([]int{4, 2}, back.Shape)
	s.Equal(raw.Samples, back.Samples)
}

func (s *NormalizerSuite) TestSamplesAreClampedTo16Bit() {
	handle, err := s.normalizer.NormalizeSamples(context.Background(), RawAudio{
		SampleRate: 8000,
		Shape:      []int{2},
		Samples:    []int{70000, -70000},
	})
	s.Require().NoError(err)
	s.Equal([]int{32767, -32768}, s.readBack(handle.Path).Samples)
}

func (s *NormalizerSuite) TestUnsupportedShapeWritesNothing() {
	_, err := s.normalizer.NormalizeSamples(context.Background(), RawAudio{
		SampleRate: 16000,
		Shape:      []int{2, 3, 100},
		Samples:    make([]int, 600),
	})

	s.Require().Error(err)
	s.ErrorIs(err, ErrUnsupportedAudioShape)
	s.Empty(s.files())
}

func (s *NormalizerSuite) TestInvalidSampleRate() {
	_, err := s.normalizer.NormalizeSamples(context.Background(), RawAudio{SampleRate: 0, Shape: []int{1}, Samples: []int{0}})
	s.ErrorIs(err, ErrInvalidSampleRate)
	s.Empty(s.files())
}

func (s *NormalizerSuite) TestConcurrentCallsNeverCollide() {
	const n = 1000
	ctx := context.Background()
	ids := make(chan string, n)
	errs := make(chan error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.normalizer.NormalizeSamples(ctx, RawAudio{SampleRate: 8000, Shape: []int{4}, Samples: []int{i, i, i, i}})
			if err != nil {
				errs <- err
				return
			}
			ids <- h.ID
		}(i)
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}
	seen := map[string]struct{}{}
	for id := range ids {
		_, dup := seen[id]
		s.False(dup, id)
		seen[id] = struct{}{}
	}
	s.Len(seen, n)
	s.Len(s.files(), n)
}

func (s *NormalizerSuite) TestNormalizeStreamDecodesWAV() {
	input := s.wavBytes(22050, Stereo{Data: [2][]int{{1, 2, 3}, {4, 5, 6}}})

	handle, err := s.normalizer.NormalizeStream(context.Background(), bytes.NewReader(input), "take.wav")
	s.Require().NoError(err)
	s.Equal(2, handle.Channels)
	s.Equal(22050, handle.SampleRate)
	s.Equal([]int{1, 4, 2, 5, 3, 6}, s.readBack(handle.Path).Samples)
}

func (s *NormalizerSuite) TestNormalizeStreamScales24BitWAV() {
	path := filepath.Join(s.T().TempDir(), "hi-res.wav")
	f, err := os.Create(path)
	s.Require().NoError(err)
	enc := wav.NewEncoder(f, 48000, 24, 1, 1)
	s.Require().NoError(enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 48000},
		Data:           []int{100 << 8, -(100 << 8)},
		SourceBitDepth: 24,
	}))
	s.Require().NoError(enc.Close())
	s.Require().NoError(f.Close())
	data, err := os.ReadFile(path)
	s.Require().NoError(err)

	raw, err := s.normalizer.Decode(context.Background(), bytes.NewReader(data), "hi-res.wav")
	s.Require().NoError(err)
	s.Equal(48000, raw.SampleRate)
	s.Equal([]int{100, -100}, raw.Samples)
}

func (s *NormalizerSuite) TestNonWAVWithoutTranscoderIsDecodeError() {
	_, err := s.normalizer.NormalizeStream(context.Background(), strings.NewReader("ID3 not really mp3"), "take.mp3")

	s.Require().Error(err)
	s.ErrorIs(err, ErrDecode)
	s.Empty(s.files())
}

func (s *NormalizerSuite) TestCorruptWAVIsDecodeError() {
	_, err := s.normalizer.NormalizeStream(context.Background(), strings.NewReader("RIFF\x00\x00\x00\x00WAVEjunk"), "bad.wav")
	s.ErrorIs(err, ErrDecode)
}

func (s *NormalizerSuite) TestEmptyStreamIsDecodeError() {
	_, err := s.normalizer.NormalizeStream(context.Background(), strings.NewReader(""), "empty.wav")
	s.ErrorIs(err, ErrDecode)
}

func (s *NormalizerSuite) TestSizeLimit() {
	n := NewNormalizer(NewStore(s.dir), WithMaxBytes(8))
	_, err := n.NormalizeStream(context.Background(), strings.NewReader(strings.Repeat("x", 20)), "big.wav")
	s.ErrorIs(err, ErrAudioTooLarge)
}

type fakeTranscoder struct {
	out      []byte
	err      error
	gotName  string
	gotBytes []byte
}

func (f *fakeTranscoder) Transcode(_ context.Context, r io.Reader, filename string) ([]byte, error) {
	f.gotName = filename
	f.gotBytes, _ = io.ReadAll(r)
	return f.out, f.err
}

func (s *NormalizerSuite) TestContainerAudioGoesThroughTranscoder() {
	fake := &fakeTranscoder{out: s.wavBytes(16000, Mono{Samples: []int{7, 8, 9}})}
	n := NewNormalizer(NewStore(s.dir), WithTranscoder(fake))

	handle, err := n.NormalizeStream(context.Background(), strings.NewReader("webm-bytes"), "mic.webm")
	s.Require().NoError(err)
	s.Equal("mic.webm", fake.gotName)
	s.Equal([]byte("webm-bytes"), fake.gotBytes)
	s.Equal(1, handle.Channels)
	s.Equal([]int{7, 8, 9}, s.readBack(handle.Path).Samples)
}

func (s *NormalizerSuite) TestTranscoderFailureIsDecodeError() {
	n := NewNormalizer(NewStore(s.dir), WithTranscoder(&fakeTranscoder{err: errors.New("exit status 1")}))

	_, err := n.NormalizeStream(context.Background(), strings.NewReader("ogg"), "a.ogg")
	s.ErrorIs(err, ErrDecode)
	s.Empty(s.files())
}

func (s *NormalizerSuite) TestDecodedMultichannelIsUnsupported() {
	path := filepath.Join(s.T().TempDir(), "surround.wav")
	f, err := os.Create(path)
	s.Require().NoError(err)
	enc := wav.NewEncoder(f, 8000, 16, 3, 1)
	s.Require().NoError(enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 3, SampleRate: 8000},
		Data:           []int{1, 2, 3, 4, 5, 6},
		SourceBitDepth: 16,
	}))
	s.Require().NoError(enc.Close())
	s.Require().NoError(f.Close())
	data, err := os.ReadFile(path)
	s.Require().NoError(err)

	_, err = s.normalizer.NormalizeStream(context.Background(), bytes.NewReader(data), "surround.wav")
	s.ErrorIs(err, ErrUnsupportedAudioShape)
	s.Empty(s.files())
}

func (s *NormalizerSuite) TestTargetSampleRateResamples() {
	n := NewNormalizer(NewStore(s.dir), WithTargetSampleRate(16000))
	raw := RawAudio{SampleRate: 48000, Shape: []int{48000, 2}, Samples: append(sine(48000), sine(48000)...)}

	handle, err := n.NormalizeSamples(context.Background(), raw)
	s.Require().NoError(err)

	s.Equal(16000, handle.SampleRate)
	s.Equal(2, handle.Channels)
	s.InDelta(16000, handle.Frames, 4)

	back := s.readBack(handle.Path)
	s.Equal(16000, back.SampleRate)
	s.Equal(handle.Frames, back.Shape[0])
}

func (s *NormalizerSuite) TestTargetSampleRateKeepsShortClipTail() {
	n := NewNormalizer(NewStore(s.dir), WithTargetSampleRate(16000))
	samples := sine(480)

	handle, err := n.NormalizeSamples(context.Background(), RawAudio{SampleRate: 48000, Shape: []int{480}, Samples: samples})
	s.Require().NoError(err)

	s.Equal(16000, handle.SampleRate)
	s.InDelta(160, handle.Frames, 2)
	s.Equal(10*time.Millisecond, handle.Duration().Round(time.Millisecond))
}

func (s *NormalizerSuite) TestFloatConversionKeepsGain() {
	samples := []int{-32768, -16384, -1, 0, 1, 12345, 16384, 32767}
	s.Equal(samples, floatToPCM(pcmToFloat(samples)))
	s.InDelta(-1.0, pcmToFloat([]int{-32768})[0], 1e-12)
	s.InDelta(0.5, pcmToFloat([]int{16384})[0], 1e-12)
}

func (s *NormalizerSuite) TestTargetSampleRateMatchingInputIsUntouched() {
	n := NewNormalizer(NewStore(s.dir), WithTargetSampleRate(16000))
	samples := sine(1600)

	handle, err := n.NormalizeSamples(context.Background(), RawAudio{SampleRate: 16000, Shape: []int{1600}, Samples: samples})
	s.Require().NoError(err)
	s.Equal(samples, s.readBack(handle.Path).Samples)
}
