// Package audio tracks playback position for a received voice note so a
// scrubber can follow along: lazy metadata load, play/pause toggle,
// absolute seek, and an automatic reset to zero at end of clip.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrPlaybackUnavailable means the resource could not be fetched. The
// player holds the state rather than panicking mid-scrub.
var ErrPlaybackUnavailable = errors.New("playback unavailable")

const defaultPositionTick = 50 * time.Millisecond

type Config struct {
	// HTTP fetches the resource; nil means http.DefaultClient.
	HTTP *http.Client

	// Now is the playback clock, overridable in tests.
	Now func() time.Time

	// Tick is the position-callback cadence while playing. Sub-second by
	// default so a progress indicator moves smoothly.
	Tick time.Duration

	// OnPosition receives position updates while playing and the final
	// reset-to-zero on completion.
	OnPosition func(time.Duration)
}

type Player struct {
	url string
	cfg Config

	mu          sync.Mutex
	loaded      bool
	unavailable bool
	duration    time.Duration
	playing     bool
	offset      time.Duration
	startedAt   time.Time
	stopTick    chan struct{}
}

func NewPlayer(url string, cfg Config) *Player {
	if cfg.HTTP == nil {
		cfg.HTTP = http.DefaultClient
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultPositionTick
	}
	return &Player{url: url, cfg: cfg}
}

// Load fetches the resource and probes its duration. Only fetch failures
// mark the player unavailable; a clip in a container the probe cannot read
// still plays, with an unknown (zero) duration. Load runs at most once;
// TogglePlay calls it lazily.
func (p *Player) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.loaded {
		unavailable := p.unavailable
		p.mu.Unlock()
		if unavailable {
			return ErrPlaybackUnavailable
		}
		return nil
	}
	p.mu.Unlock()

	dur, err := p.fetchDuration(ctx)

	p.mu.Lock()
	p.loaded = true
	if err != nil {
		p.unavailable = true
		p.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrPlaybackUnavailable, err)
	}
	p.duration = dur
	p.mu.Unlock()
	return nil
}

func (p *Player) fetchDuration(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := p.cfg.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	// WAV is the only container the probe understands. Anything else
	// (webm, mp4, ogg) reports an unknown duration and stays playable.
	dur, err := wavDuration(data)
	if err != nil {
		return 0, nil
	}
	return dur, nil
}

func (p *Player) Unavailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unavailable
}

func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Position is the current scrub position. While paused it is the stored
// offset; while playing it advances with the clock.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() time.Duration {
	if !p.playing {
		return p.offset
	}
	pos := p.offset + p.cfg.Now().Sub(p.startedAt)
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

// TogglePlay flips between playing and paused, loading metadata first if
// needed.
func (p *Player) TogglePlay(ctx context.Context) error {
	if err := p.Load(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	if p.playing {
		p.offset = p.positionLocked()
		p.playing = false
		close(p.stopTick)
		p.stopTick = nil
		p.mu.Unlock()
		return nil
	}

	p.playing = true
	p.startedAt = p.cfg.Now()
	p.stopTick = make(chan struct{})
	stop := p.stopTick
	p.mu.Unlock()

	go p.tickLoop(stop)
	return nil
}

// Seek moves to an absolute position, clamped to the clip bounds.
func (p *Player) Seek(to time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if to < 0 {
		to = 0
	}
	if p.duration > 0 && to > p.duration {
		to = p.duration
	}
	p.offset = to
	if p.playing {
		p.startedAt = p.cfg.Now()
	}
}

func (p *Player) tickLoop(stop chan struct{}) {
	ticker := time.NewTicker(p.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			if !p.playing {
				p.mu.Unlock()
				return
			}
			pos := p.positionLocked()
			done := p.duration > 0 && pos >= p.duration
			if done {
				// End of clip: back to paused at zero, not parked at the
				// end of the track.
				p.playing = false
				p.offset = 0
				close(p.stopTick)
				p.stopTick = nil
			}
			p.mu.Unlock()

			if p.cfg.OnPosition != nil {
				if done {
					p.cfg.OnPosition(0)
				} else {
					p.cfg.OnPosition(pos)
				}
			}
			if done {
				return
			}
		}
	}
}

// Close stops the position loop.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.playing = false
		p.offset = 0
		close(p.stopTick)
		p.stopTick = nil
	}
}
