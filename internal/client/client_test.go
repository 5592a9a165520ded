package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moajmalnk/skillmount-support/internal/auth"
	"github.com/moajmalnk/skillmount-support/internal/client"
	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

func newClientFor(srv *httptest.Server) *client.Client {
	return client.New(srv.URL, auth.Session{UserID: "stu-1", Name: "Asha", Role: auth.RoleStudent, Token: "tok-1"})
}

func TestReplySendsMultipartAndDecodesMessage(t *testing.T) {
	var gotAuth string
	var gotText string
	var gotVoice []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tickets/t-1/reply" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		mr, err := r.MultipartReader()
		if err != nil {
			t.Errorf("multipart reader: %v", err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Errorf("next part: %v", err)
				break
			}
			data, _ := io.ReadAll(part)
			switch part.FormName() {
			case "message":
				gotText = string(data)
			case "voice_note":
				gotVoice = data
				if ct := part.Header.Get("Content-Type"); ct != "audio/webm;codecs=opus" {
					t.Errorf("voice content type %q", ct)
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ticket.Message{ID: "m-1", Sender: "stu-1", Text: gotText})
	}))
	t.Cleanup(srv.Close)

	c := newClientFor(srv)
	m, err := c.Reply(context.Background(), "t-1", client.ReplyInput{
		Text:  "hello there",
		Voice: &client.Upload{Name: "note.webm", ContentType: "audio/webm;codecs=opus", Data: []byte{1, 2, 3}},
	})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}

	if m.ID != "m-1" {
		t.Fatalf("expected canonical message id, got %q", m.ID)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if gotText != "hello there" {
		t.Fatalf("text did not arrive: %q", gotText)
	}
	if len(gotVoice) != 3 {
		t.Fatalf("voice bytes did not arrive: %v", gotVoice)
	}
}

func TestReplyErrorEnvelopeBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"empty_reply","message":"reply needs text, a voice note or an attachment"}}`))
	}))
	t.Cleanup(srv.Close)

	c := newClientFor(srv)
	_, err := c.Reply(context.Background(), "t-1", client.ReplyInput{Text: "x"})

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "empty_reply" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestNonEnvelopeErrorStillSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	t.Cleanup(srv.Close)

	c := newClientFor(srv)
	err := c.UpdateStatus(context.Background(), "t-1", ticket.StatusClosed)

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusGatewayTimeout || apiErr.Code != "unexpected_status" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestUpdateStatusSendsPatch(t *testing.T) {
	var gotMethod, gotPath, gotStatus string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path

		var body struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotStatus = body.Status

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ticket.Ticket{ID: "t-1", Status: ticket.StatusClosed})
	}))
	t.Cleanup(srv.Close)

	c := newClientFor(srv)
	if err := c.UpdateStatus(context.Background(), "t-1", ticket.StatusClosed); err != nil {
		t.Fatalf("update status: %v", err)
	}

	if gotMethod != http.MethodPatch || gotPath != "/tickets/t-1/status" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
	if gotStatus != "closed" {
		t.Fatalf("expected closed, got %q", gotStatus)
	}
}

func TestReplyInputEmpty(t *testing.T) {
	if !(client.ReplyInput{}).Empty() {
		t.Fatalf("zero input must be empty")
	}
	if !(client.ReplyInput{Text: "   "}).Empty() {
		t.Fatalf("whitespace-only text must be empty")
	}
	if (client.ReplyInput{Voice: &client.Upload{Data: []byte{1}}}).Empty() {
		t.Fatalf("voice-only input is not empty")
	}
	if (client.ReplyInput{Attachment: &client.Upload{Data: []byte{1}}}).Empty() {
		t.Fatalf("attachment-only input is not empty")
	}
}
