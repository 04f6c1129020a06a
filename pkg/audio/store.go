package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/utils"
	"github.com/google/uuid"
)

// Store is the flat scratch directory holding one canonical file per request.
type Store struct {
	dir   string
	now   func() time.Time
	newID func() string
}

func NewStore(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = "media"
	}
	return &Store{
		dir:   dir,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes shape as <uuid>.wav. Nothing is written for an Unsupported shape.
func (s *Store) Save(ctx context.Context, shape Shape, sampleRate int) (model.AudioHandle, error) {
	log := logging.NewLogger(ctx)
	if unsupported, ok := shape.(Unsupported); ok {
		return model.AudioHandle{}, unsupported
	}
	if sampleRate <= 0 {
		return model.AudioHandle{}, fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}

	err := os.MkdirAll(s.dir, 0o755)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.AudioHandle{}, utils.WrapIfNotNil(err)
	}

	id := s.newID()
	path := filepath.Join(s.dir, id+model.CanonicalAudioExtension)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.AudioHandle{}, utils.WrapIfNotNil(err)
	}

	err = writeWAV(file, shape, sampleRate)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		log.Errorf("error: %v", err)
		return model.AudioHandle{}, utils.WrapIfNotNil(err)
	}

	handle := model.AudioHandle{
		ID:         id,
		Path:       path,
		MIMEType:   wavMIMEType,
		SampleRate: sampleRate,
		Channels:   shape.Channels(),
		Frames:     shape.Frames(),
		CreatedAt:  s.now(),
	}
	log.Debugf("audio.Store.Save id=%s channels=%d sample_rate=%d frames=%d", id, handle.Channels, sampleRate, handle.Frames)
	return handle, nil
}

// Remove deletes the canonical file behind handle. Missing files are not an error.
func (s *Store) Remove(handle model.AudioHandle) error {
	if strings.TrimSpace(handle.Path) == "" {
		return nil
	}
	err := os.Remove(handle.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return utils.WrapIfNotNil(err)
	}
	return nil
}

// Sweep removes canonical files older than olderThan and reports how many were deleted.
// Only files named <uuid>.wav are considered.
func (s *Store) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logging.NewLogger(ctx)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		log.Errorf("error: %v", err)
		return 0, utils.WrapIfNotNil(err)
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if entry.IsDir() || !isCanonicalName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		err = os.Remove(filepath.Join(s.dir, entry.Name()))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("audio.Store.Sweep remove %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Infof("audio.Store.Sweep removed=%d older_than=%s", removed, olderThan)
	}
	return removed, nil
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, ttl); err != nil && ctx.Err() == nil {
				logging.NewLogger(ctx).Errorf("error: %v", err)
			}
		}
	}
}

func isCanonicalName(name string) bool {
	if filepath.Ext(name) != model.CanonicalAudioExtension {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(name, model.CanonicalAudioExtension))
	return err == nil
}
