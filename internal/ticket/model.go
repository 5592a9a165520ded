package ticket

import (
	"strings"
	"time"

	"github.com/moajmalnk/skillmount-support/internal/auth"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
	StatusReopened   Status = "reopened"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusClosed:
		return StatusClosed, true
	case StatusReopened:
		return StatusReopened, true
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityUrgent:
		return PriorityUrgent, true
	}
	return "", false
}

// Student is the portfolio owner a ticket belongs to.
type Student struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Batch  string `json:"batch,omitempty"`
}

// Message is one entry in a ticket conversation. At least one of Text,
// VoiceNote or Attachment is non-empty on a created message.
type Message struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"message,omitempty"`
	VoiceNote  string    `json:"voice_note,omitempty"`
	Attachment string    `json:"attachment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (m Message) Empty() bool {
	return strings.TrimSpace(m.Text) == "" && m.VoiceNote == "" && m.Attachment == ""
}

type Ticket struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	Student     Student   `json:"student"`
	AssignedTo  string    `json:"assigned_to,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Messages    []Message `json:"messages"`
}

// StatusAfterReply is the status a ticket takes when someone answers: staff
// replies mark it in progress, student replies keep it open for staff.
func StatusAfterReply(role auth.Role) Status {
	if role.CanModerate() {
		return StatusInProgress
	}
	return StatusOpen
}

type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Priority    string  `json:"priority"`
	Student     Student `json:"student"`
}

func (r CreateTicketRequest) Validate() error {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return ValidationError("title is required")
	}
	if len(title) < 3 {
		return ValidationError("title must be at least 3 characters")
	}
	if len(title) > 200 {
		return ValidationError("title must be at most 200 characters")
	}

	desc := strings.TrimSpace(r.Description)
	if len(desc) > 5000 {
		return ValidationError("description must be at most 5000 characters")
	}

	if r.Priority != "" {
		if _, ok := ParsePriority(r.Priority); !ok {
			return ValidationError("priority must be one of low, medium, high, urgent")
		}
	}

	if strings.TrimSpace(r.Student.ID) == "" {
		return ValidationError("student.id is required")
	}

	return nil
}
