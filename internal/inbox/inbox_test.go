package inbox

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasedigital/lasechat/internal/admin"
	"github.com/lasedigital/lasechat/internal/gateway"
	"github.com/lasedigital/lasechat/internal/hub"
	"github.com/lasedigital/lasechat/internal/messages"
	"github.com/lasedigital/lasechat/internal/storage/sqlite"
	"github.com/lasedigital/lasechat/internal/store"
	"github.com/lasedigital/lasechat/internal/transcript"
)

func newTestServer(t *testing.T) (*httptest.Server, *gateway.Client, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Db.Close() })
	require.NoError(t, conn.Migrate())
	st := store.New(conn.Db, false)

	h := hub.NewHub()
	go h.Run()

	r := gin.New()
	api := r.Group("/api")
	admin.Register(api, "1234", "test-secret", 60)
	messages.Register(api, st, h, 200, admin.Middleware("test-secret"))
	hub.RegisterWS(api, h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	gw, err := gateway.New(srv.URL)
	require.NoError(t, err)
	return srv, gw, st
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) Notify(title, body string) error {
	f.mu.Lock()
	f.calls = append(f.calls, body)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestUnreadCounters(t *testing.T) {
	_, gw, st := newTestServer(t)
	notif := &fakeNotifier{}
	ib := New(gw, Options{Notifier: notif})
	ctx := context.Background()

	_, err := st.Insert("x", "hello from x", "user")
	require.NoError(t, err)
	require.NoError(t, ib.Open(ctx, "x"))

	now := time.Now().UTC()

	// Message for the open session: no unread bump.
	ib.handleInsert(transcript.Remote{
		ID: "10", SessionID: "x", Text: "more from x",
		Author: transcript.AuthorUser, CreatedAt: now,
	})
	assert.Equal(t, 0, ib.Unread("x"))
	assert.Equal(t, 0, notif.count())

	// Message for another session increments it and notifies.
	ib.handleInsert(transcript.Remote{
		ID: "11", SessionID: "y", Text: "hello from y",
		Author: transcript.AuthorUser, CreatedAt: now,
	})
	assert.Equal(t, 1, ib.Unread("y"))
	assert.Equal(t, 0, ib.Unread("x"))
	assert.Equal(t, 1, notif.count())

	// At-least-once push: the same row again must not double-count.
	ib.handleInsert(transcript.Remote{
		ID: "11", SessionID: "y", Text: "hello from y",
		Author: transcript.AuthorUser, CreatedAt: now,
	})
	assert.Equal(t, 1, ib.Unread("y"))
	assert.Equal(t, 1, notif.count())

	// Admin-authored rows never count as unread.
	ib.handleInsert(transcript.Remote{
		ID: "12", SessionID: "y", Text: "admin reply",
		Author: transcript.AuthorAdmin, CreatedAt: now,
	})
	assert.Equal(t, 1, ib.Unread("y"))

	// Opening the session resets its counter.
	require.NoError(t, ib.Open(ctx, "y"))
	assert.Equal(t, 0, ib.Unread("y"))
}

func TestCountedEntriesPrunedWithSession(t *testing.T) {
	_, gw, _ := newTestServer(t)
	ib := New(gw, Options{})
	ctx := context.Background()
	now := time.Now().UTC()

	ib.handleInsert(transcript.Remote{
		ID: "20", SessionID: "y", Text: "one",
		Author: transcript.AuthorUser, CreatedAt: now,
	})
	ib.handleInsert(transcript.Remote{
		ID: "21", SessionID: "z", Text: "two",
		Author: transcript.AuthorUser, CreatedAt: now,
	})
	require.Len(t, ib.counted, 2)

	// Opening a session drops its dedup entries but nobody else's.
	require.NoError(t, ib.Open(ctx, "y"))
	assert.Len(t, ib.counted, 1)
	_, kept := ib.counted["21"]
	assert.True(t, kept)

	// Deleting a session drops its entries too.
	require.NoError(t, ib.Login(ctx, "1234"))
	require.NoError(t, ib.Delete(ctx, "z"))
	assert.Empty(t, ib.counted)
}

func TestNotificationBodyKeepsRunesIntact(t *testing.T) {
	_, gw, _ := newTestServer(t)
	notif := &fakeNotifier{}
	ib := New(gw, Options{Notifier: notif})

	// 130 multi-byte runes; a byte-indexed cut would split one.
	text := strings.Repeat("é", 130)
	ib.handleInsert(transcript.Remote{
		ID: "30", SessionID: "y", Text: text,
		Author: transcript.AuthorUser, CreatedAt: time.Now().UTC(),
	})

	require.Equal(t, 1, notif.count())
	notif.mu.Lock()
	body := notif.calls[0]
	notif.mu.Unlock()
	assert.True(t, utf8.ValidString(body))
	assert.Equal(t, 120, utf8.RuneCountInString(body))
}

func TestOpenLoadsTranscript(t *testing.T) {
	_, gw, st := newTestServer(t)
	ib := New(gw, Options{})
	ctx := context.Background()

	_, err := st.Insert("sess", "first", "user")
	require.NoError(t, err)
	_, err = st.Insert("sess", "second", "admin")
	require.NoError(t, err)

	require.NoError(t, ib.Open(ctx, "sess"))

	msgs := ib.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, transcript.AuthorUser, msgs[0].Author)
	assert.Equal(t, transcript.AuthorAdmin, msgs[1].Author)
}

func TestReplyConfirms(t *testing.T) {
	_, gw, _ := newTestServer(t)
	ib := New(gw, Options{})
	ctx := context.Background()

	require.NoError(t, ib.Open(ctx, "sess"))
	require.NoError(t, ib.Reply(ctx, "how can I help?"))

	msgs := ib.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.StateConfirmed, msgs[0].State)
	assert.Equal(t, transcript.AuthorAdmin, msgs[0].Author)
}

func TestReplyWithoutActiveSession(t *testing.T) {
	_, gw, _ := newTestServer(t)
	ib := New(gw, Options{})

	require.Error(t, ib.Reply(context.Background(), "into nothing"))
}

func TestDeleteRequiresLogin(t *testing.T) {
	_, gw, st := newTestServer(t)
	ib := New(gw, Options{})
	ctx := context.Background()

	_, err := st.Insert("abc", "kept", "user")
	require.NoError(t, err)

	err = ib.Delete(ctx, "abc")
	require.ErrorIs(t, err, gateway.ErrUnauthorized)

	rows, err := st.BySession("abc")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, ib.Login(ctx, "1234"))
	require.NoError(t, ib.Delete(ctx, "abc"))

	rows, err = st.BySession("abc")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteClearsActiveState(t *testing.T) {
	_, gw, st := newTestServer(t)
	ib := New(gw, Options{})
	ctx := context.Background()

	_, err := st.Insert("abc", "doomed", "user")
	require.NoError(t, err)
	require.NoError(t, ib.Login(ctx, "1234"))
	require.NoError(t, ib.Open(ctx, "abc"))
	require.NoError(t, ib.Delete(ctx, "abc"))

	assert.Empty(t, ib.Active())
	assert.Nil(t, ib.Messages())
}

func TestExportActiveConversation(t *testing.T) {
	_, gw, st := newTestServer(t)
	ib := New(gw, Options{})
	ctx := context.Background()

	_, err := st.Insert("sess", "exported", "user")
	require.NoError(t, err)
	require.NoError(t, ib.Open(ctx, "sess"))

	payload, err := ib.Export()
	require.NoError(t, err)
	assert.Contains(t, string(payload), "exported")

	ib2 := New(gw, Options{})
	_, err = ib2.Export()
	require.Error(t, err)
}

func TestActionCardReply(t *testing.T) {
	_, gw, _ := newTestServer(t)
	ib := New(gw, Options{})
	ctx := context.Background()

	require.NoError(t, ib.Open(ctx, "sess"))
	require.NoError(t, ib.SendActionCard(ctx, "open_whatsapp", "Continue on WhatsApp", "https://wa.me/123"))

	msgs := ib.Messages()
	require.Len(t, msgs, 1)
	card, ok := transcript.ParseActionCard(msgs[0].Text)
	require.True(t, ok)
	assert.Equal(t, "https://wa.me/123", card.URL)
}
