package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
)

// Transcoder converts arbitrary container audio into a 16-bit PCM WAV payload.
type Transcoder interface {
	Transcode(ctx context.Context, r io.Reader, filename string) ([]byte, error)
}

var ErrTranscoderUnavailable = errors.New("no transcoder configured")

// FFmpegTranscoder shells out to ffmpeg. Input and output go through temp files so
// containers that need seeking (m4a, mp4) decode correctly.
type FFmpegTranscoder struct {
	Path string
}

func NewFFmpegTranscoder(path string) *FFmpegTranscoder {
	if strings.TrimSpace(path) == "" {
		path = "ffmpeg"
	}
	return &FFmpegTranscoder{Path: path}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, r io.Reader, filename string) ([]byte, error) {
	log := logging.NewLogger(ctx)

	src, err := os.CreateTemp("", "pronounce-src-*"+filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("temp input: %w", err)
	}
	defer os.Remove(src.Name())

	if _, err := io.Copy(src, r); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("buffer input: %w", err)
	}
	if err := src.Close(); err != nil {
		return nil, fmt.Errorf("close temp input: %w", err)
	}

	dst, err := os.CreateTemp("", "pronounce-dst-*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp output: %w", err)
	}
	dstPath := dst.Name()
	_ = dst.Close()
	defer os.Remove(dstPath)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-y",
		"-i", src.Name(),
		"-vn",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		dstPath,
	}
	cmd := exec.CommandContext(ctx, t.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debugf("ffmpeg transcode input=%q", filename)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg failed: %v: %s", ErrDecode, err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.ReadFile(dstPath)
	if err != nil {
		return nil, fmt.Errorf("read transcoded output: %w", err)
	}
	return out, nil
}
