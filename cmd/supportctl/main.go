// supportctl is a terminal client for the support service: watch a ticket
// live, send composite replies, and manage status and macros.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/moajmalnk/skillmount-support/internal/auth"
	"github.com/moajmalnk/skillmount-support/internal/client"
	"github.com/moajmalnk/skillmount-support/internal/client/composer"
	clientlive "github.com/moajmalnk/skillmount-support/internal/client/live"
	serverlive "github.com/moajmalnk/skillmount-support/internal/live"
	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "watch":
		err = cmdWatch(os.Args[2:])
	case "reply":
		err = cmdReply(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "macros":
		err = cmdMacros(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: supportctl <watch|reply|status|macros> [flags]

common flags:
  --server URL   support service base URL (default http://localhost:8080)
  --token TOKEN  bearer token (or SUPPORT_TOKEN env)`)
}

func commonFlags(fs *pflag.FlagSet) (server, token *string) {
	server = fs.String("server", "http://localhost:8080", "support service base URL")
	token = fs.String("token", os.Getenv("SUPPORT_TOKEN"), "bearer token")
	return
}

func newClient(server, token string) (*client.Client, error) {
	if token == "" {
		return nil, fmt.Errorf("a token is required (--token or SUPPORT_TOKEN)")
	}
	sess, err := auth.SessionFromToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return client.New(server, sess), nil
}

func cmdWatch(args []string) error {
	fs := pflag.NewFlagSet("watch", pflag.ExitOnError)
	server, token := commonFlags(fs)
	ticketID := fs.String("ticket", "", "ticket id to watch")
	reconnect := fs.Bool("reconnect", false, "reconnect with backoff when the live channel drops")
	_ = fs.Parse(args)

	if *ticketID == "" {
		return fmt.Errorf("--ticket is required")
	}

	c, err := newClient(*server, *token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := c.GetTicket(ctx, *ticketID)
	if err != nil {
		return err
	}

	fmt.Printf("ticket %s [%s/%s] %s\n", t.ID, t.Priority, t.Status, t.Title)
	for _, m := range t.Messages {
		printMessage(m)
	}

	seen := composerView(t)
	conn, err := clientlive.Dial(ctx, c.BaseURL(), *ticketID, c.Session().Token,
		func(ev serverlive.Event) {
			before := len(seen.Messages())
			seen.Apply(ev)
			if len(seen.Messages()) > before {
				printMessage(ev.Message)
			}
		},
		clientlive.Options{
			Reconnect: *reconnect,
			OnDrop: func(err error) {
				fmt.Fprintln(os.Stderr, "live channel dropped:", err)
			},
		})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	<-ctx.Done()
	return nil
}

func composerView(t ticket.Ticket) *composer.Composer {
	// The watch command only needs the merge view, not submission.
	return composer.New(nil, auth.Session{}, t)
}

func cmdReply(args []string) error {
	fs := pflag.NewFlagSet("reply", pflag.ExitOnError)
	server, token := commonFlags(fs)
	ticketID := fs.String("ticket", "", "ticket id")
	text := fs.String("text", "", "reply text")
	voicePath := fs.String("voice", "", "path to a voice note file")
	attachPath := fs.String("attach", "", "path to an attachment")
	closeAfter := fs.Bool("close", false, "close the ticket after sending (staff only)")
	_ = fs.Parse(args)

	if *ticketID == "" {
		return fmt.Errorf("--ticket is required")
	}

	c, err := newClient(*server, *token)
	if err != nil {
		return err
	}

	ctx := context.Background()

	t, err := c.GetTicket(ctx, *ticketID)
	if err != nil {
		return err
	}

	comp := composer.New(c, c.Session(), t)
	comp.SetText(*text)

	if *voicePath != "" {
		u, err := loadUpload(*voicePath, "audio/wav")
		if err != nil {
			return err
		}
		comp.AttachVoice(u)
	}
	if *attachPath != "" {
		u, err := loadUpload(*attachPath, "")
		if err != nil {
			return err
		}
		comp.AttachFile(u)
	}

	m, err := comp.SendReply(ctx, *closeAfter)
	if err != nil {
		return err
	}

	fmt.Printf("sent message %s; ticket is now %s\n", m.ID, comp.Status())
	return nil
}

func loadUpload(path, contentType string) (client.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return client.Upload{}, err
	}
	return client.Upload{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func cmdStatus(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ExitOnError)
	server, token := commonFlags(fs)
	ticketID := fs.String("ticket", "", "ticket id")
	status := fs.String("status", "", "new status: open, in_progress, closed, reopened")
	_ = fs.Parse(args)

	if *ticketID == "" || *status == "" {
		return fmt.Errorf("--ticket and --status are required")
	}

	next, ok := ticket.ParseStatus(*status)
	if !ok {
		return fmt.Errorf("unknown status %q", *status)
	}

	c, err := newClient(*server, *token)
	if err != nil {
		return err
	}

	if err := c.UpdateStatus(context.Background(), *ticketID, next); err != nil {
		return err
	}
	fmt.Printf("ticket %s is now %s\n", *ticketID, next)
	return nil
}

func cmdMacros(args []string) error {
	fs := pflag.NewFlagSet("macros", pflag.ExitOnError)
	server, token := commonFlags(fs)
	_ = fs.Parse(args)

	c, err := newClient(*server, *token)
	if err != nil {
		return err
	}

	ms, err := c.ListMacros(context.Background())
	if err != nil {
		return err
	}
	for _, m := range ms {
		fmt.Printf("%s\t%s\n", m.ID, m.Title)
	}
	return nil
}

func printMessage(m ticket.Message) {
	parts := []string{}
	if m.Text != "" {
		parts = append(parts, m.Text)
	}
	if m.VoiceNote != "" {
		parts = append(parts, "[voice "+m.VoiceNote+"]")
	}
	if m.Attachment != "" {
		parts = append(parts, "[file "+m.Attachment+"]")
	}
	fmt.Printf("%s  %s: %s\n", m.Timestamp.Format("15:04:05"), m.SenderName, strings.Join(parts, " "))
}
