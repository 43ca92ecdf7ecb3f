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
	"github.com/lasedigital/lasechat/internal/inbox"
	"github.com/lasedigital/lasechat/internal/transcript"
)

// Terminal rendition of the admin dashboard: PIN login for the session
// cookie, session inbox with unread counters and visitor presence, and the
// active-conversation transcript.
func main() {
	server := flag.String("server", "http://localhost:8080", "chat server base URL")
	pin := flag.String("pin", "", "admin PIN (or set LASECHAT_ADMIN_PIN)")
	flag.Parse()

	if *pin == "" {
		*pin = os.Getenv("LASECHAT_ADMIN_PIN")
	}

	gw, err := gateway.New(*server)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	ib := inbox.New(gw, inbox.Options{
		Notifier: inbox.DesktopNotifier{},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *pin != "" {
		if err := ib.Login(ctx, *pin); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		fmt.Println("logged in as admin")
	} else {
		fmt.Println("no PIN given: read-only (delete will be refused)")
	}

	ib.Start(ctx)
	defer ib.Stop()

	fmt.Println("Commands: /sessions, /open <id-prefix>, /card <url>, /export, /delete, /quit")
	fmt.Println("Anything else replies to the active session.")

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case line == "/sessions":
			renderSessions(ib)
		case strings.HasPrefix(line, "/open "):
			openSession(ctx, ib, strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
		case strings.HasPrefix(line, "/card "):
			url := strings.TrimSpace(strings.TrimPrefix(line, "/card "))
			if err := ib.SendActionCard(ctx, "open_whatsapp", "Continue this conversation on WhatsApp", url); err != nil {
				fmt.Printf("  ! card failed: %v\n", err)
			}
		case line == "/export":
			exportActive(ib)
		case line == "/delete":
			deleteActive(ctx, ib, sc)
		default:
			if err := ib.Reply(ctx, line); err != nil {
				fmt.Printf("  ! reply failed: %v\n", err)
			}
			renderTranscript(ib)
		}
	}
}

// short clamps an id for display. Session ids from the widget are UUIDs,
// but the insert API only requires the field to be non-empty, so ids of any
// length reach the inbox.
func short(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func renderSessions(ib *inbox.Inbox) {
	rows := ib.Sessions()
	if len(rows) == 0 {
		fmt.Println("  (no sessions)")
		return
	}
	for _, r := range rows {
		dot := " "
		if r.Online {
			dot = "*"
		}
		unread := ""
		if r.Unread > 0 {
			unread = fmt.Sprintf(" [%d unread]", r.Unread)
		}
		fmt.Printf("  %s %s  last %s%s\n", dot, short(r.SessionID), r.LastActivity.Format("Jan 2 15:04"), unread)
	}
}

func openSession(ctx context.Context, ib *inbox.Inbox, prefix string) {
	for _, r := range ib.Sessions() {
		if strings.HasPrefix(r.SessionID, prefix) {
			if err := ib.Open(ctx, r.SessionID); err != nil {
				fmt.Printf("  ! open failed: %v\n", err)
				return
			}
			renderTranscript(ib)
			return
		}
	}
	fmt.Println("  ! no session with that prefix")
}

func renderTranscript(ib *inbox.Inbox) {
	for _, m := range ib.Messages() {
		who := "visitor"
		if m.Author == transcript.AuthorAdmin {
			who = "admin"
		}
		mark := ""
		switch m.State {
		case transcript.StatePending:
			mark = " (sending)"
		case transcript.StateFailed:
			mark = fmt.Sprintf(" (FAILED: %s)", m.FailReason)
		}
		fmt.Printf("[%s] %s: %s%s\n", m.CreatedAt.Format("15:04"), who, m.Text, mark)
	}
}

func exportActive(ib *inbox.Inbox) {
	payload, err := ib.Export()
	if err != nil {
		fmt.Printf("  ! export failed: %v\n", err)
		return
	}
	name := fmt.Sprintf("session-%s.json", short(ib.Active()))
	if err := os.WriteFile(name, payload, 0o644); err != nil {
		fmt.Printf("  ! write failed: %v\n", err)
		return
	}
	fmt.Printf("  wrote %s\n", name)
}

func deleteActive(ctx context.Context, ib *inbox.Inbox, sc *bufio.Scanner) {
	sid := ib.Active()
	if sid == "" {
		fmt.Println("  ! no active session")
		return
	}
	fmt.Printf("  delete all messages for %s? this cannot be undone (yes/no): ", short(sid))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "yes" {
		fmt.Println("  aborted")
		return
	}
	if err := ib.Delete(ctx, sid); err != nil {
		fmt.Printf("  ! delete failed: %v\n", err)
		return
	}
	fmt.Println("  deleted")
}
