package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lasedigital/lasechat/internal/transcript"
	"github.com/lasedigital/lasechat/internal/utils"
)

// Client is the typed store gateway the widget and the admin dashboard talk
// through. Transport and store failures come back as the typed errors in this
// package, never as raw HTTP details.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}, nil
}

// WSURL derives the websocket endpoint for a subscription scope.
func (c *Client) WSURL(scope string) string {
	u := strings.Replace(c.baseURL, "http", "ws", 1)
	return u + "/api/ws?scope=" + url.QueryEscape(scope)
}

// wireRow is the server's row shape. A missing sender marks a legacy row.
type wireRow struct {
	ID        int64   `json:"id"`
	SessionID string  `json:"session_id"`
	Text      string  `json:"text"`
	Sender    *string `json:"sender"`
	CreatedAt string  `json:"created_at"`
}

// Normalize maps a wire row into the tagged shape the reconciliation engine
// consumes, so nothing downstream branches on field presence.
func (r wireRow) normalize() transcript.Remote {
	out := transcript.Remote{
		ID:        strconv.FormatInt(r.ID, 10),
		SessionID: r.SessionID,
		Text:      r.Text,
		CreatedAt: utils.ParseTime(r.CreatedAt),
	}
	if r.Sender != nil && *r.Sender != "" {
		out.Author = transcript.Author(*r.Sender)
	} else {
		out.Inferred = true
	}
	return out
}

type SessionInfo struct {
	SessionID    string
	LastActivity time.Time
}

// Insert appends one message and returns the authoritative row.
func (c *Client) Insert(ctx context.Context, sessionID, text string, author transcript.Author) (transcript.Remote, error) {
	body, _ := json.Marshal(map[string]string{
		"session_id": sessionID,
		"text":       text,
		"sender":     string(author),
	})

	var row wireRow
	if err := c.do(ctx, http.MethodPost, "/api/messages", body, &row); err != nil {
		return transcript.Remote{}, err
	}
	return row.normalize(), nil
}

// Conversation fetches the full transcript for one session, ascending by
// timestamp. Unknown sessions yield an empty slice.
func (c *Client) Conversation(ctx context.Context, sessionID string) ([]transcript.Remote, error) {
	var resp struct {
		Messages []wireRow `json:"messages"`
	}
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]transcript.Remote, 0, len(resp.Messages))
	for _, r := range resp.Messages {
		out = append(out, r.normalize())
	}
	return out, nil
}

// Sessions lists distinct conversations newest-first; the server caps the
// result.
func (c *Client) Sessions(ctx context.Context) ([]SessionInfo, error) {
	var resp struct {
		Sessions []struct {
			SessionID    string `json:"session_id"`
			LastActivity string `json:"last_activity"`
		} `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]SessionInfo, 0, len(resp.Sessions))
	for _, s := range resp.Sessions {
		out = append(out, SessionInfo{
			SessionID:    s.SessionID,
			LastActivity: utils.ParseTime(s.LastActivity),
		})
	}
	return out, nil
}

// DeleteConversation removes every row for a session. Requires a prior Login
// on this client; without the cookie the server answers Unauthorized.
func (c *Client) DeleteConversation(ctx context.Context, sessionID string) error {
	path := "/api/sessions/" + url.PathEscape(sessionID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Login exchanges the PIN for the HTTP-only admin session cookie, kept in
// this client's jar for subsequent privileged calls.
func (c *Client) Login(ctx context.Context, pin string) error {
	body, _ := json.Marshal(map[string]string{"pin": pin})
	return c.do(ctx, http.MethodPost, "/api/admin/login", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd *bytes.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return &ConnectivityError{Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error any `json:"error"`
		}
		reason := resp.Status
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != nil {
			reason = fmt.Sprint(apiErr.Error)
		}
		return &RejectedError{Status: resp.StatusCode, Reason: reason}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ConnectivityError{Err: err}
	}
	return nil
}
