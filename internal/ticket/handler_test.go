package ticket_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/moajmalnk/skillmount-support/internal/auth"
	"github.com/moajmalnk/skillmount-support/internal/live"
	"github.com/moajmalnk/skillmount-support/internal/macro"
	"github.com/moajmalnk/skillmount-support/internal/media"
	"github.com/moajmalnk/skillmount-support/internal/shared/httpx"
	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

const testSecret = "test-secret"

func testLogger() *slog.Logger {
	h := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h).With(
		slog.String("app", "test"),
		slog.String("env", "test"),
	)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := testLogger()

	ticketStore := ticket.NewInMemoryStore()
	mediaStore := media.NewInMemoryStore()
	macroStore := macro.NewInMemoryStore()

	hub := live.NewHub(log, nil)
	liveH := live.NewHandler(log, hub, ticketStore)

	ticketH := &ticket.Handler{Log: log, Store: ticketStore, Media: mediaStore, Live: hub}
	macroH := &macro.Handler{Log: log, Store: macroStore}
	mediaH := &media.Handler{Log: log, Store: mediaStore}

	handler := httpx.NewRouter(log, httpx.RouterConfig{
		CORSOrigin: "*",
		Registry:   prometheus.NewRegistry(),
	}, httpx.Routes{
		Auth: &auth.Middleware{Secret: testSecret},

		TicketCreate: ticketH.Create,
		TicketGet:    ticketH.Get,
		TicketList:   ticketH.List,
		TicketDelete: ticketH.Delete,
		TicketReply:  ticketH.Reply,
		TicketStatus: ticketH.UpdateStatus,

		Live: liveH.Serve,

		MacroList:   macroH.List,
		MacroCreate: macroH.Create,
		MacroDelete: macroH.Delete,

		MediaServe: mediaH.Serve,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func tokenFor(t *testing.T, userID, name string, role auth.Role) string {
	t.Helper()
	tok, err := auth.SignToken(testSecret, auth.Session{UserID: userID, Name: name, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func createTicket(t *testing.T, srv *httptest.Server, token string) ticket.Ticket {
	t.Helper()

	resp := doJSON(t, http.MethodPost, srv.URL+"/tickets", token, ticket.CreateTicketRequest{
		Title:    "Videos not loading",
		Priority: "high",
		Student:  ticket.Student{ID: "stu-1", Name: "Asha"},
	})
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("create: expected 201, got %d, body=%s", resp.StatusCode, string(b))
	}

	var created ticket.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return created
}

func sendReply(t *testing.T, srv *httptest.Server, token, ticketID, text string, voice, attachment []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if text != "" {
		_ = mw.WriteField("message", text)
	}
	if voice != nil {
		w, _ := mw.CreateFormFile("voice_note", "note.webm")
		_, _ = w.Write(voice)
	}
	if attachment != nil {
		w, _ := mw.CreateFormFile("attachment", "log.txt")
		_, _ = w.Write(attachment)
	}
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/tickets/"+ticketID+"/reply", &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestCreateTicket201(t *testing.T) {
	srv := newTestServer(t)
	token := tokenFor(t, "stu-1", "Asha", auth.RoleStudent)

	created := createTicket(t, srv, token)

	if created.ID == "" {
		t.Fatalf("expected id to be set")
	}
	if created.Status != ticket.StatusOpen {
		t.Fatalf("expected status open, got %q", created.Status)
	}
	if created.Priority != ticket.PriorityHigh {
		t.Fatalf("expected priority high, got %q", created.Priority)
	}
}

func TestCreateTicketValidation400(t *testing.T) {
	srv := newTestServer(t)
	token := tokenFor(t, "stu-1", "Asha", auth.RoleStudent)

	resp := doJSON(t, http.MethodPost, srv.URL+"/tickets", token, map[string]string{"title": ""})
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var er struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if er.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %q", er.Error.Code)
	}
}

func TestTicketRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/tickets", "", nil)
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestStudentReplyAppendsAndKeepsOpen(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, "stu-1", "Asha", auth.RoleStudent)

	created := createTicket(t, srv, student)

	resp := sendReply(t, srv, student, created.ID, "Thanks", nil, nil)
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d, body=%s", resp.StatusCode, string(b))
	}

	var m ticket.Message
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected server-assigned message id")
	}
	if m.Text != "Thanks" {
		t.Fatalf("expected text %q, got %q", "Thanks", m.Text)
	}

	getResp := doJSON(t, http.MethodGet, srv.URL+"/tickets/"+created.ID, student, nil)
	defer func() { _ = getResp.Body.Close() }()

	var got ticket.Ticket
	if err := json.NewDecoder(getResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got.Messages))
	}
	if got.Status != ticket.StatusOpen {
		t.Fatalf("student reply should leave ticket open, got %q", got.Status)
	}
}

func TestStaffVoiceReplySetsInProgressAndStoresBlob(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, "stu-1", "Asha", auth.RoleStudent)
	staff := tokenFor(t, "tut-1", "Milo", auth.RoleTutor)

	created := createTicket(t, srv, student)

	resp := sendReply(t, srv, staff, created.ID, "", []byte("opus-bytes"), nil)
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d, body=%s", resp.StatusCode, string(b))
	}

	var m ticket.Message
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if m.Text != "" {
		t.Fatalf("expected no text, got %q", m.Text)
	}
	if !strings.HasPrefix(m.VoiceNote, "/media/") {
		t.Fatalf("expected a /media/ voice URL, got %q", m.VoiceNote)
	}

	// The blob is downloadable at the URL the message carries.
	blobResp, err := http.Get(srv.URL + m.VoiceNote)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	defer func() { _ = blobResp.Body.Close() }()
	blob, _ := io.ReadAll(blobResp.Body)
	if string(blob) != "opus-bytes" {
		t.Fatalf("blob round-trip mismatch: %q", blob)
	}

	getResp := doJSON(t, http.MethodGet, srv.URL+"/tickets/"+created.ID, staff, nil)
	defer func() { _ = getResp.Body.Close() }()

	var got ticket.Ticket
	if err := json.NewDecoder(getResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if got.Status != ticket.StatusInProgress {
		t.Fatalf("staff reply should mark in_progress, got %q", got.Status)
	}
}

func TestEmptyReplyRejectedWithoutSideEffects(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, "stu-1", "Asha", auth.RoleStudent)

	created := createTicket(t, srv, student)

	resp := sendReply(t, srv, student, created.ID, "", nil, nil)
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var er struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if er.Error.Code != "empty_reply" {
		t.Fatalf("expected empty_reply, got %q", er.Error.Code)
	}

	getResp := doJSON(t, http.MethodGet, srv.URL+"/tickets/"+created.ID, student, nil)
	defer func() { _ = getResp.Body.Close() }()

	var got ticket.Ticket
	if err := json.NewDecoder(getResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if len(got.Messages) != 0 {
		t.Fatalf("message list must stay unchanged, got %d", len(got.Messages))
	}
}

func TestStatusTransitions(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, "stu-1", "Asha", auth.RoleStudent)
	staff := tokenFor(t, "tut-1", "Milo", auth.RoleTutor)

	created := createTicket(t, srv, student)

	// Reopen before close is rejected.
	resp := doJSON(t, http.MethodPatch, srv.URL+"/tickets/"+created.ID+"/status", staff, map[string]string{"status": "reopened"})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for reopen of open ticket, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPatch, srv.URL+"/tickets/"+created.ID+"/status", staff, map[string]string{"status": "closed"})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for close, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPatch, srv.URL+"/tickets/"+created.ID+"/status", staff, map[string]string{"status": "reopened"})
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for reopen of closed ticket, got %d", resp.StatusCode)
	}

	var got ticket.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if got.Status != ticket.StatusReopened {
		t.Fatalf("expected reopened, got %q", got.Status)
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, "stu-1", "Asha", auth.RoleStudent)
	tutor := tokenFor(t, "tut-1", "Milo", auth.RoleTutor)
	admin := tokenFor(t, "adm-1", "Root", auth.RoleAdmin)

	created := createTicket(t, srv, student)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/tickets/"+created.ID, student, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for student delete, got %d", resp.StatusCode)
	}

	// Tutors moderate but do not delete.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/tickets/"+created.ID, tutor, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for tutor delete, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/tickets/"+created.ID, admin, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for admin delete, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/tickets/"+created.ID, admin, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestListFilters(t *testing.T) {
	srv := newTestServer(t)
	staff := tokenFor(t, "tut-1", "Milo", auth.RoleTutor)
	student := tokenFor(t, "stu-1", "Asha", auth.RoleStudent)

	a := createTicket(t, srv, student)
	_ = createTicket(t, srv, student)

	// Move one ticket to in_progress via a staff reply.
	resp := sendReply(t, srv, staff, a.ID, "on it", nil, nil)
	_ = resp.Body.Close()

	listResp := doJSON(t, http.MethodGet, srv.URL+"/tickets?status=in_progress", staff, nil)
	defer func() { _ = listResp.Body.Close() }()

	var got []ticket.Ticket
	if err := json.NewDecoder(listResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("expected only the replied ticket, got %d entries", len(got))
	}
}

func TestMacroAccessByRole(t *testing.T) {
	srv := newTestServer(t)
	student := tokenFor(t, "stu-1", "Asha", auth.RoleStudent)
	tutor := tokenFor(t, "tut-1", "Milo", auth.RoleTutor)
	admin := tokenFor(t, "adm-1", "Root", auth.RoleAdmin)

	resp := doJSON(t, http.MethodGet, srv.URL+"/macros", student, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", resp.StatusCode)
	}

	// Tutors read the macro library but only admins edit it.
	resp = doJSON(t, http.MethodPost, srv.URL+"/macros", tutor, map[string]string{
		"title": "greeting",
		"body":  "Hi! Thanks for reaching out.",
	})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for tutor create, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/macros", admin, map[string]string{
		"title": "greeting",
		"body":  "Hi! Thanks for reaching out.",
	})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/macros", tutor, nil)
	defer func() { _ = resp.Body.Close() }()

	var ms []macro.Macro
	if err := json.NewDecoder(resp.Body).Decode(&ms); err != nil {
		t.Fatalf("decode macros: %v", err)
	}
	if len(ms) != 1 || ms[0].Title != "greeting" {
		t.Fatalf("unexpected macro list: %+v", ms)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/macros/"+ms[0].ID, tutor, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for tutor delete, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/macros/"+ms[0].ID, admin, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for admin delete, got %d", resp.StatusCode)
	}
}

func TestStoreStatusAfterReplyRoles(t *testing.T) {
	if ticket.StatusAfterReply(auth.RoleStudent) != ticket.StatusOpen {
		t.Fatalf("student reply must map to open")
	}
	if ticket.StatusAfterReply(auth.RoleTutor) != ticket.StatusInProgress {
		t.Fatalf("tutor reply must map to in_progress")
	}
	if ticket.StatusAfterReply(auth.RoleAdmin) != ticket.StatusInProgress {
		t.Fatalf("admin reply must map to in_progress")
	}
}

func TestInMemoryStoreAppendMessageAtomicity(t *testing.T) {
	store := ticket.NewInMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, ticket.Ticket{Title: "x", Status: ticket.StatusOpen, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.AppendMessage(ctx, "missing", ticket.Message{Text: "hi"}, ticket.StatusOpen); err != ticket.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	m, err := store.AppendMessage(ctx, created.ID, ticket.Message{Text: "hi"}, ticket.StatusInProgress)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if m.ID == "" || m.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned")
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Messages) != 1 || got.Status != ticket.StatusInProgress {
		t.Fatalf("message and status must land together: %d msgs, status %q", len(got.Messages), got.Status)
	}
}
