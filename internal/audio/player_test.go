package audio_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moajmalnk/skillmount-support/internal/audio"
)

// buildWAV produces a minimal PCM RIFF/WAVE blob whose duration is
// dataBytes / byteRate seconds.
func buildWAV(byteRate uint32, dataBytes int) []byte {
	var buf bytes.Buffer

	data := make([]byte, dataBytes)

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataBytes))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, byteRate)  // sample rate
	_ = binary.Write(&buf, binary.LittleEndian, byteRate)  // byte rate
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(8)) // bits/sample

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataBytes))
	buf.Write(data)

	return buf.Bytes()
}

func serveBlob(t *testing.T, blob []byte, contentType string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(blob)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadProbesWAVDuration(t *testing.T) {
	// 8000 B/s with 4000 bytes of samples = half a second.
	srv := serveBlob(t, buildWAV(8000, 4000), "audio/wav")

	p := audio.NewPlayer(srv.URL, audio.Config{})
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := p.Duration(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %v", got)
	}
	if p.Unavailable() {
		t.Fatalf("player should be available")
	}
}

func TestLoadNonWAVStaysPlayable(t *testing.T) {
	// A webm/opus clip, the recorder's own default container. The probe
	// cannot read it, so the duration is unknown, but playback still works.
	srv := serveBlob(t, []byte{0x1a, 0x45, 0xdf, 0xa3, 0x01, 0x02, 0x03}, "audio/webm;codecs=opus")

	p := audio.NewPlayer(srv.URL, audio.Config{})
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Unavailable() {
		t.Fatalf("unknown container must not mark the player unavailable")
	}
	if got := p.Duration(); got != 0 {
		t.Fatalf("expected unknown duration, got %v", got)
	}
}

func TestTogglePlayAdvancesWithUnknownDuration(t *testing.T) {
	srv := serveBlob(t, []byte{0x1a, 0x45, 0xdf, 0xa3, 0x01, 0x02, 0x03}, "audio/webm;codecs=opus")

	p := audio.NewPlayer(srv.URL, audio.Config{Tick: 10 * time.Millisecond})
	t.Cleanup(p.Close)

	if err := p.TogglePlay(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !p.Playing() {
		t.Fatalf("expected playing")
	}

	time.Sleep(80 * time.Millisecond)
	if p.Position() <= 0 {
		t.Fatalf("position did not advance: %v", p.Position())
	}

	// Seeks past an unknown duration are not clamped to zero.
	p.Seek(2 * time.Second)
	if p.Position() < 2*time.Second {
		t.Fatalf("seek lost ground with unknown duration: %v", p.Position())
	}
}

func TestLoadHTTPErrorUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	p := audio.NewPlayer(srv.URL, audio.Config{})
	if err := p.Load(context.Background()); !errors.Is(err, audio.ErrPlaybackUnavailable) {
		t.Fatalf("expected ErrPlaybackUnavailable, got %v", err)
	}
}

func TestTogglePlayAdvancesPosition(t *testing.T) {
	srv := serveBlob(t, buildWAV(8000, 8000), "audio/wav") // 1s clip

	p := audio.NewPlayer(srv.URL, audio.Config{Tick: 10 * time.Millisecond})
	t.Cleanup(p.Close)

	if err := p.TogglePlay(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !p.Playing() {
		t.Fatalf("expected playing")
	}

	time.Sleep(80 * time.Millisecond)
	if p.Position() <= 0 {
		t.Fatalf("position did not advance: %v", p.Position())
	}

	if err := p.TogglePlay(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if p.Playing() {
		t.Fatalf("expected paused")
	}

	// While paused the position holds still.
	held := p.Position()
	time.Sleep(40 * time.Millisecond)
	if p.Position() != held {
		t.Fatalf("position moved while paused: %v -> %v", held, p.Position())
	}
}

func TestCompletionResetsToPausedZero(t *testing.T) {
	srv := serveBlob(t, buildWAV(8000, 400), "audio/wav") // 50ms clip

	positions := make(chan time.Duration, 64)
	p := audio.NewPlayer(srv.URL, audio.Config{
		Tick:       10 * time.Millisecond,
		OnPosition: func(d time.Duration) { positions <- d },
	})
	t.Cleanup(p.Close)

	if err := p.TogglePlay(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case pos := <-positions:
			if pos == 0 && !p.Playing() {
				if p.Position() != 0 {
					t.Fatalf("expected position 0 after completion, got %v", p.Position())
				}
				return
			}
		case <-deadline:
			t.Fatalf("completion reset never observed")
		}
	}
}

func TestSeekClampsToClipBounds(t *testing.T) {
	srv := serveBlob(t, buildWAV(8000, 8000), "audio/wav") // 1s clip

	p := audio.NewPlayer(srv.URL, audio.Config{})
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	p.Seek(2 * time.Second)
	if p.Position() != time.Second {
		t.Fatalf("expected clamp to 1s, got %v", p.Position())
	}

	p.Seek(-time.Second)
	if p.Position() != 0 {
		t.Fatalf("expected clamp to 0, got %v", p.Position())
	}

	p.Seek(300 * time.Millisecond)
	if p.Position() != 300*time.Millisecond {
		t.Fatalf("expected 300ms, got %v", p.Position())
	}
}
