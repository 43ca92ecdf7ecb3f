package widget_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasedigital/lasechat/internal/admin"
	"github.com/lasedigital/lasechat/internal/gateway"
	"github.com/lasedigital/lasechat/internal/hub"
	"github.com/lasedigital/lasechat/internal/messages"
	"github.com/lasedigital/lasechat/internal/realtime"
	"github.com/lasedigital/lasechat/internal/storage/sqlite"
	"github.com/lasedigital/lasechat/internal/store"
	"github.com/lasedigital/lasechat/internal/transcript"
	"github.com/lasedigital/lasechat/internal/widget"
)

func newTestServer(t *testing.T) (*httptest.Server, *gateway.Client) {
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
	return srv, gw
}

func TestSendConfirmsWithoutDuplicate(t *testing.T) {
	_, gw := newTestServer(t)

	w := widget.New(gw, "sess-w", widget.Options{PollInterval: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, w.Send(ctx, "Hello"))

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.StateConfirmed, msgs[0].State)
	assert.Equal(t, "Hello", msgs[0].Text)
	assert.Equal(t, transcript.AuthorUser, msgs[0].Author)

	// The realtime self-notification and the next poll tick must not add
	// a duplicate.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, len(w.Messages()))
}

func TestAdminReplyArrivesOnce(t *testing.T) {
	_, gw := newTestServer(t)

	w := widget.New(gw, "sess-w", widget.Options{PollInterval: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	// Admin replies through its own gateway.
	_, err := gw.Insert(ctx, "sess-w", "Hi, how can I help?", transcript.AuthorAdmin)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(w.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// push + poll overlap must still yield exactly one record
	time.Sleep(150 * time.Millisecond)
	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.AuthorAdmin, msgs[0].Author)
}

func TestFailedSendIsKeptAndMarked(t *testing.T) {
	gw, err := gateway.New("http://127.0.0.1:1") // nothing listens here
	require.NoError(t, err)

	w := widget.New(gw, "sess-x", widget.Options{})
	ctx := context.Background()

	err = w.Send(ctx, "into the void")
	require.Error(t, err)

	msgs := w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.StateFailed, msgs[0].State)
	assert.NotEmpty(t, msgs[0].FailReason)

	// Retry against the same dead server fails again but keeps the record.
	err = w.Retry(ctx, msgs[0].ID)
	require.Error(t, err)
	msgs = w.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.StateFailed, msgs[0].State)
}

func TestAdminPresenceObserved(t *testing.T) {
	_, gw := newTestServer(t)

	w := widget.New(gw, "sess-w", widget.Options{
		PollInterval: time.Hour, // isolate the push path
		Heartbeat:    time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	assert.False(t, w.AdminOnline())

	// Admin comes online over its own socket.
	adminSub, err := realtime.Subscribe(ctx, gw.WSURL(realtime.ScopeAll), realtime.ScopeAll, realtime.Handlers{})
	require.NoError(t, err)
	defer adminSub.Close()
	require.NoError(t, adminSub.Announce(realtime.Signal{Role: "admin", Status: realtime.StatusOnline}))

	require.Eventually(t, w.AdminOnline, 2*time.Second, 10*time.Millisecond)
}

func TestOpenCommandChannel(t *testing.T) {
	_, gw := newTestServer(t)
	w := widget.New(gw, "sess-w", widget.Options{})

	w.Open()
	select {
	case <-w.OpenRequests():
	default:
		t.Fatal("open request not delivered")
	}

	// Repeated opens never block the caller.
	w.Open()
	w.Open()
}
