package composer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/moajmalnk/skillmount-support/internal/auth"
	"github.com/moajmalnk/skillmount-support/internal/client"
	"github.com/moajmalnk/skillmount-support/internal/client/composer"
	"github.com/moajmalnk/skillmount-support/internal/live"
	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

// fakeAPI records calls and plays back canned results.
type fakeAPI struct {
	replyCalls   int
	statusCalls  []ticket.Status
	lastInput    client.ReplyInput
	replyErr     error
	statusErr    error
	replyMessage ticket.Message
}

func (f *fakeAPI) Reply(_ context.Context, _ string, in client.ReplyInput) (ticket.Message, error) {
	f.replyCalls++
	f.lastInput = in
	if f.replyErr != nil {
		return ticket.Message{}, f.replyErr
	}
	m := f.replyMessage
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Text = in.Text
	if in.Voice != nil {
		m.VoiceNote = "/media/" + uuid.NewString()
	}
	if in.Attachment != nil {
		m.Attachment = "/media/" + uuid.NewString()
	}
	m.Timestamp = time.Now().UTC()
	return m, nil
}

func (f *fakeAPI) UpdateStatus(_ context.Context, _ string, s ticket.Status) error {
	f.statusCalls = append(f.statusCalls, s)
	return f.statusErr
}

func openTicket(n int) ticket.Ticket {
	t := ticket.Ticket{
		ID:     "t1",
		Title:  "Cannot open lesson 4",
		Status: ticket.StatusOpen,
	}
	for i := 0; i < n; i++ {
		t.Messages = append(t.Messages, ticket.Message{ID: uuid.NewString(), Text: "earlier"})
	}
	return t
}

func studentSession() auth.Session {
	return auth.Session{UserID: "s1", Name: "Asha", Role: auth.RoleStudent}
}

func staffSession() auth.Session {
	return auth.Session{UserID: "a1", Name: "Milo", Role: auth.RoleTutor}
}

func TestSendReplyEmptyMakesNoCall(t *testing.T) {
	api := &fakeAPI{}
	c := composer.New(api, studentSession(), openTicket(2))

	_, err := c.SendReply(context.Background(), false)

	if !errors.Is(err, composer.ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
	if api.replyCalls != 0 {
		t.Fatalf("expected no network call, got %d", api.replyCalls)
	}
	if len(c.Messages()) != 2 {
		t.Fatalf("message list changed: %d", len(c.Messages()))
	}
}

func TestSendReplyFailureKeepsDraftAndList(t *testing.T) {
	api := &fakeAPI{replyErr: errors.New("boom")}
	c := composer.New(api, studentSession(), openTicket(1))

	c.SetText("please help")
	c.AttachFile(client.Upload{Name: "log.txt", Data: []byte("x")})

	_, err := c.SendReply(context.Background(), false)
	if err == nil {
		t.Fatalf("expected submission error")
	}

	if c.Text() != "please help" {
		t.Fatalf("draft text lost: %q", c.Text())
	}
	if !c.HasAttachment() {
		t.Fatalf("attachment lost after failure")
	}
	if len(c.Messages()) != 1 {
		t.Fatalf("message list changed on failure: %d", len(c.Messages()))
	}
	if c.Submitting() {
		t.Fatalf("composer stuck in submitting")
	}
}

func TestSendReplySuccessAppendsCanonicalAndClears(t *testing.T) {
	api := &fakeAPI{replyMessage: ticket.Message{ID: "srv-1", Sender: "s1", SenderName: "Asha"}}
	c := composer.New(api, studentSession(), openTicket(3))

	c.SetText("Thanks")

	m, err := c.SendReply(context.Background(), false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs := c.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[3].ID != "srv-1" {
		t.Fatalf("expected the server message to be appended, got %q", msgs[3].ID)
	}
	if msgs[3].Text != "Thanks" {
		t.Fatalf("expected text %q, got %q", "Thanks", msgs[3].Text)
	}
	if m.ID != "srv-1" {
		t.Fatalf("returned message differs: %q", m.ID)
	}

	if c.Text() != "" || c.HasVoice() || c.HasAttachment() {
		t.Fatalf("composer inputs not cleared")
	}

	// Student replies keep the ticket open for staff.
	if c.Status() != ticket.StatusOpen {
		t.Fatalf("expected status open, got %q", c.Status())
	}
	if len(api.statusCalls) != 0 {
		t.Fatalf("student send must not issue status calls")
	}
}

func TestStaffReplySetsInProgress(t *testing.T) {
	api := &fakeAPI{}
	c := composer.New(api, staffSession(), openTicket(0))

	c.SetText("Looking into it")
	if _, err := c.SendReply(context.Background(), false); err != nil {
		t.Fatalf("send: %v", err)
	}

	if c.Status() != ticket.StatusInProgress {
		t.Fatalf("expected in_progress, got %q", c.Status())
	}
}

func TestStaffVoiceNoteWithCloseAfter(t *testing.T) {
	api := &fakeAPI{}
	c := composer.New(api, staffSession(), openTicket(0))

	c.AttachVoice(client.Upload{Name: "note.webm", ContentType: "audio/webm", Data: []byte("audio")})

	m, err := c.SendReply(context.Background(), true)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if m.VoiceNote == "" {
		t.Fatalf("expected a voice_note URL on the message")
	}
	if m.Text != "" {
		t.Fatalf("expected no text, got %q", m.Text)
	}

	if len(api.statusCalls) != 1 || api.statusCalls[0] != ticket.StatusClosed {
		t.Fatalf("expected one close status call, got %v", api.statusCalls)
	}
	if c.Status() != ticket.StatusClosed {
		t.Fatalf("expected closed, got %q", c.Status())
	}
}

func TestCloseAfterIgnoredForStudents(t *testing.T) {
	api := &fakeAPI{}
	c := composer.New(api, studentSession(), openTicket(0))

	c.SetText("done, thanks")
	if _, err := c.SendReply(context.Background(), true); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(api.statusCalls) != 0 {
		t.Fatalf("students must not trigger close, got %v", api.statusCalls)
	}
}

func TestOwnEchoMergedOnce(t *testing.T) {
	api := &fakeAPI{replyMessage: ticket.Message{ID: "srv-9"}}
	c := composer.New(api, studentSession(), openTicket(0))

	c.SetText("hello")
	sent, err := c.SendReply(context.Background(), false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// The live channel echoes the same message back after the submit
	// response landed.
	c.Apply(live.Event{Type: live.EventNewMessage, Message: sent})

	if n := len(c.Messages()); n != 1 {
		t.Fatalf("expected exactly one entry for id %q, got %d", sent.ID, n)
	}
}

func TestEchoBeforeSubmitResponseMergedOnce(t *testing.T) {
	// Reversed arrival order: the push lands before SendReply returns.
	echo := ticket.Message{ID: "srv-7", Text: "hello"}
	api := &fakeAPI{replyMessage: echo}
	c := composer.New(api, studentSession(), openTicket(0))

	c.Apply(live.Event{Type: live.EventNewMessage, Message: echo})

	c.SetText("hello")
	if _, err := c.SendReply(context.Background(), false); err != nil {
		t.Fatalf("send: %v", err)
	}

	if n := len(c.Messages()); n != 1 {
		t.Fatalf("expected exactly one entry, got %d", n)
	}
}

func TestApplyIgnoresOtherEventTypes(t *testing.T) {
	c := composer.New(&fakeAPI{}, studentSession(), openTicket(1))

	c.Apply(live.Event{Type: "typing", Message: ticket.Message{ID: "x"}})

	if len(c.Messages()) != 1 {
		t.Fatalf("unknown event type must not change the list")
	}
}

func TestInsertMacroAppendsToDraft(t *testing.T) {
	c := composer.New(&fakeAPI{}, staffSession(), openTicket(0))

	c.InsertMacro("Hi! Thanks for reaching out.")
	if c.Text() != "Hi! Thanks for reaching out." {
		t.Fatalf("unexpected draft: %q", c.Text())
	}

	c.InsertMacro("We are on it.")
	want := "Hi! Thanks for reaching out.\nWe are on it."
	if c.Text() != want {
		t.Fatalf("expected %q, got %q", want, c.Text())
	}
}
