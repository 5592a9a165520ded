// Package composer holds the in-memory view of one open ticket: its
// message list, the pending reply being assembled, and the merge of live
// pushes with locally submitted messages.
package composer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/moajmalnk/skillmount-support/internal/auth"
	"github.com/moajmalnk/skillmount-support/internal/client"
	"github.com/moajmalnk/skillmount-support/internal/live"
	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

var (
	// ErrEmptyReply means send was attempted with no text, voice or file.
	// No network call is made.
	ErrEmptyReply = errors.New("reply has no text, voice note or attachment")

	// ErrBusy means a submission is already in flight.
	ErrBusy = errors.New("a reply submission is already in flight")
)

// API is the slice of the support client the composer needs.
type API interface {
	Reply(ctx context.Context, ticketID string, in client.ReplyInput) (ticket.Message, error)
	UpdateStatus(ctx context.Context, ticketID string, status ticket.Status) error
}

type Composer struct {
	api  API
	sess auth.Session

	mu         sync.Mutex
	ticketID   string
	status     ticket.Status
	messages   []ticket.Message
	text       string
	voice      *client.Upload
	attachment *client.Upload
	submitting bool
}

func New(api API, sess auth.Session, t ticket.Ticket) *Composer {
	msgs := make([]ticket.Message, len(t.Messages))
	copy(msgs, t.Messages)

	return &Composer{
		api:      api,
		sess:     sess,
		ticketID: t.ID,
		status:   t.Status,
		messages: msgs,
	}
}

func (c *Composer) SetText(s string) {
	c.mu.Lock()
	c.text = s
	c.mu.Unlock()
}

// InsertMacro appends a canned reply to the current draft text.
func (c *Composer) InsertMacro(body string) {
	c.mu.Lock()
	if c.text == "" {
		c.text = body
	} else {
		c.text = strings.TrimRight(c.text, " \n") + "\n" + body
	}
	c.mu.Unlock()
}

func (c *Composer) AttachVoice(u client.Upload) {
	c.mu.Lock()
	c.voice = &u
	c.mu.Unlock()
}

func (c *Composer) ClearVoice() {
	c.mu.Lock()
	c.voice = nil
	c.mu.Unlock()
}

func (c *Composer) AttachFile(u client.Upload) {
	c.mu.Lock()
	c.attachment = &u
	c.mu.Unlock()
}

func (c *Composer) ClearFile() {
	c.mu.Lock()
	c.attachment = nil
	c.mu.Unlock()
}

func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *Composer) HasVoice() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice != nil
}

func (c *Composer) HasAttachment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachment != nil
}

func (c *Composer) Status() ticket.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Composer) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Messages returns a copy of the current message list.
func (c *Composer) Messages() []ticket.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ticket.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Apply merges one live event into the view. A message already present by
// id (the sender's own echo) is skipped, so Apply is idempotent per id.
func (c *Composer) Apply(ev live.Event) {
	if ev.Type != live.EventNewMessage {
		return
	}
	c.mu.Lock()
	c.messages = MergeMessage(c.messages, ev.Message)
	c.mu.Unlock()
}

// SendReply submits the pending payload as one composite request. On
// success the server's canonical message is merged into the list, the
// local status follows the sender's role, and the draft is cleared. On
// failure the draft is kept exactly as it was so nothing is lost.
//
// closeAfter additionally requests a transition to closed; it only applies
// to staff sessions.
func (c *Composer) SendReply(ctx context.Context, closeAfter bool) (ticket.Message, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ticket.Message{}, ErrBusy
	}

	in := client.ReplyInput{
		Text:       c.text,
		Voice:      c.voice,
		Attachment: c.attachment,
	}
	if in.Empty() {
		c.mu.Unlock()
		return ticket.Message{}, ErrEmptyReply
	}

	c.submitting = true
	ticketID := c.ticketID
	c.mu.Unlock()

	created, err := c.api.Reply(ctx, ticketID, in)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		// Draft untouched, list untouched.
		c.mu.Unlock()
		return ticket.Message{}, err
	}

	c.messages = MergeMessage(c.messages, created)
	c.status = ticket.StatusAfterReply(c.sess.Role)
	c.text = ""
	c.voice = nil
	c.attachment = nil
	c.mu.Unlock()

	if closeAfter && c.sess.Role.CanModerate() {
		if err := c.api.UpdateStatus(ctx, ticketID, ticket.StatusClosed); err != nil {
			return created, err
		}
		c.mu.Lock()
		c.status = ticket.StatusClosed
		c.mu.Unlock()
	}

	return created, nil
}
