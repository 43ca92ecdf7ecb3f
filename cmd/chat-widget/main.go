package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lasedigital/lasechat/internal/gateway"
	"github.com/lasedigital/lasechat/internal/session"
	"github.com/lasedigital/lasechat/internal/transcript"
	"github.com/lasedigital/lasechat/internal/widget"
)

// Terminal rendition of the visitor chat widget: resolves the durable
// session id, keeps the transcript in sync via push + polling, and shows
// the support side's presence.
func main() {
	server := flag.String("server", "http://localhost:8080", "chat server base URL")
	stateDir := flag.String("state-dir", "", "directory for the session id (defaults to the user config dir)")
	flag.Parse()

	var store session.Store
	if fs, err := session.NewFileStore(*stateDir); err == nil {
		store = fs
	}
	// a nil store degrades to an in-memory session id
	sid := session.NewResolver(store).Resolve()

	gw, err := gateway.New(*server)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	w := widget.New(gw, sid, widget.Options{
		OnChange: func() {}, // rendering happens on demand below
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w.Start(ctx)
	defer w.Stop()

	fmt.Printf("Lase support chat (session %s)\n", sid[:8])
	fmt.Println("Type a message and press enter. Commands: /show, /retry <id-prefix>, /quit")

	sc := bufio.NewScanner(os.Stdin)
	for {
		render(w)
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/show":
			continue
		case strings.HasPrefix(line, "/retry "):
			prefix := strings.TrimSpace(strings.TrimPrefix(line, "/retry "))
			retry(ctx, w, prefix)
		default:
			if err := w.Send(ctx, line); err != nil {
				fmt.Printf("  ! send failed (%v), message kept, use /retry\n", err)
			}
		}
	}
}

func retry(ctx context.Context, w *widget.Widget, prefix string) {
	for _, m := range w.Messages() {
		if m.State == transcript.StateFailed && strings.HasPrefix(m.ID, prefix) {
			if err := w.Retry(ctx, m.ID); err != nil {
				fmt.Printf("  ! retry failed: %v\n", err)
			}
			return
		}
	}
	fmt.Println("  ! no failed message with that id")
}

func render(w *widget.Widget) {
	status := "offline"
	if w.AdminOnline() {
		status = "online"
	}
	fmt.Printf("-- support %s --\n", status)
	for _, m := range w.Messages() {
		who := "you"
		if m.Author == transcript.AuthorAdmin {
			who = "support"
		}
		mark := ""
		switch m.State {
		case transcript.StatePending:
			mark = " (sending)"
		case transcript.StateFailed:
			mark = fmt.Sprintf(" (FAILED: %s, id %s)", m.FailReason, m.ID[:8])
		}
		if card, ok := transcript.ParseActionCard(m.Text); ok {
			fmt.Printf("[%s] %s: %s -> %s%s\n", m.CreatedAt.Format("15:04"), who, card.Label, card.URL, mark)
			continue
		}
		fmt.Printf("[%s] %s: %s%s\n", m.CreatedAt.Format("15:04"), who, m.Text, mark)
	}
}
