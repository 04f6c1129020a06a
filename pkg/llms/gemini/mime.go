package gemini

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/utils"
)

// Normalized clips are always written as WAV.
func resolveAudioMIMEType(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filePath)))
	if ext != ".wav" {
		return "", utils.WrapIfNotNil(errors.New("unsupported audio file extension: " + ext))
	}
	return "audio/wav", nil
}
