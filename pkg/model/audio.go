package model

import "time"

const CanonicalAudioExtension = ".wav"

// AudioHandle identifies one normalized recording on durable storage.
// It is valid for the lifetime of a single assessment request.
type AudioHandle struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	MIMEType   string    `json:"mime_type"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Frames     int       `json:"frames"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h AudioHandle) Duration() time.Duration {
	if h.SampleRate <= 0 {
		return 0
	}
	return time.Duration(h.Frames) * time.Second / time.Duration(h.SampleRate)
}
