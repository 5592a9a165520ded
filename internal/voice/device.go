package voice

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied means the user refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrRecordingUnavailable means no capture device or supported
	// encoding exists on this host.
	ErrRecordingUnavailable = errors.New("audio recording unavailable")
)

// encodingPreference is tried in order; the first encoding the device
// supports wins.
var encodingPreference = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/mp4",
	"audio/ogg",
	"audio/wav",
}

// Device is an audio capture source. Open may fail with
// ErrPermissionDenied or ErrRecordingUnavailable; anything else is a
// device fault.
type Device interface {
	Supports(encoding string) bool
	Open(ctx context.Context, encoding string) (Capture, error)
}

// Capture is one open microphone handle. Bytes returns everything encoded
// so far; Close releases the device and must always be called.
type Capture interface {
	Bytes() []byte
	Close() error
}

// pickEncoding returns the first preferred encoding the device supports.
func pickEncoding(d Device) (string, bool) {
	for _, enc := range encodingPreference {
		if d.Supports(enc) {
			return enc, true
		}
	}
	return "", false
}
