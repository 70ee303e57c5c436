package services

import (
	"github.com/gabriel-vasile/mimetype"
)

// Containers the model accepts for spoken questions, keyed by the detected
// MIME type and mapped to the type sent upstream.
var audioContainers = []struct {
	detected string
	upload   string
}{
	{"audio/wav", "audio/wav"},
	{"audio/mpeg", "audio/mp3"},
	{"audio/aiff", "audio/aiff"},
	{"audio/aac", "audio/aac"},
	{"audio/ogg", "audio/ogg"},
	{"application/ogg", "audio/ogg"},
	{"audio/flac", "audio/flac"},
	{"audio/webm", "audio/webm"},
	{"video/webm", "audio/webm"},
}

// DetectAudio sniffs the container of a recorded clip and returns the MIME type
// to upload it with. Empty or unrecognised buffers yield ErrInvalidAudioInput.
func DetectAudio(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrInvalidAudioInput
	}

	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		for _, c := range audioContainers {
			if m.Is(c.detected) {
				return c.upload, nil
			}
		}
	}
	return "", ErrInvalidAudioInput
}
