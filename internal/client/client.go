package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/moajmalnk/skillmount-support/internal/auth"
	"github.com/moajmalnk/skillmount-support/internal/macro"
	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

// Client talks to the support service. The session is explicit: the token
// travels with the client, not in ambient storage.
type Client struct {
	baseURL string
	session auth.Session
	http    *http.Client
}

func New(baseURL string, sess auth.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: sess,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Session() auth.Session { return c.session }
func (c *Client) BaseURL() string       { return c.baseURL }

// SetHTTPClient swaps the underlying HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// APIError is a decoded error envelope from the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Upload is one binary part of a composite reply.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReplyInput is the composer payload: any combination of text, voice note
// and attachment, sent as one request.
type ReplyInput struct {
	Text       string
	Voice      *Upload
	Attachment *Upload
}

func (in ReplyInput) Empty() bool {
	return strings.TrimSpace(in.Text) == "" && in.Voice == nil && in.Attachment == nil
}

// Reply submits one composite reply and returns the canonical message the
// server created. There is no client retry or idempotency key; a retried
// failed submit can double-post.
func (c *Client) Reply(ctx context.Context, ticketID string, in ReplyInput) (ticket.Message, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if strings.TrimSpace(in.Text) != "" {
		if err := mw.WriteField("message", in.Text); err != nil {
			return ticket.Message{}, err
		}
	}
	if in.Voice != nil {
		if err := writeFilePart(mw, "voice_note", *in.Voice); err != nil {
			return ticket.Message{}, err
		}
	}
	if in.Attachment != nil {
		if err := writeFilePart(mw, "attachment", *in.Attachment); err != nil {
			return ticket.Message{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return ticket.Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tickets/"+ticketID+"/reply", &body)
	if err != nil {
		return ticket.Message{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out ticket.Message
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return ticket.Message{}, err
	}
	return out, nil
}

func writeFilePart(mw *multipart.Writer, field string, u Upload) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, u.Name))
	ct := u.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = w.Write(u.Data)
	return err
}

func (c *Client) UpdateStatus(ctx context.Context, ticketID string, status ticket.Status) error {
	payload, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/tickets/"+ticketID+"/status", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, http.StatusOK, nil)
}

func (c *Client) CreateTicket(ctx context.Context, in ticket.CreateTicketRequest) (ticket.Ticket, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return ticket.Ticket{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tickets", bytes.NewReader(payload))
	if err != nil {
		return ticket.Ticket{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out ticket.Ticket
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return ticket.Ticket{}, err
	}
	return out, nil
}

func (c *Client) GetTicket(ctx context.Context, id string) (ticket.Ticket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tickets/"+id, nil)
	if err != nil {
		return ticket.Ticket{}, err
	}

	var out ticket.Ticket
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return ticket.Ticket{}, err
	}
	return out, nil
}

func (c *Client) ListMacros(ctx context.Context) ([]macro.Macro, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/macros", nil)
	if err != nil {
		return nil, err
	}

	var out []macro.Macro
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.session.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "unexpected_status", Message: resp.Status}
	}
	return &APIError{
		Status:  resp.StatusCode,
		Code:    envelope.Error.Code,
		Message: envelope.Error.Message,
	}
}
