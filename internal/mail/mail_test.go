package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	netmail "net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Message {
	return Message{
		From:    Address{Name: "People Team", Email: "noreply@cloudbday.example"},
		To:      []Address{{Name: "Ada Lovelace", Email: "ada@acme.com"}},
		ReplyTo: "hr@acme.com",
		Subject: "Happy Birthday!",
		Text:    "Happy birthday, Ada!",
		HTML:    "<p>Happy birthday, <b>Ada</b>!</p>",
		Tags:    []string{"birthday"},
	}
}

// TestPurpose: Validates the Mandrill request shape and rejection handling.
// Scope: Unit Test
// Expected: Sender, recipient, Reply-To header and tags are sent; a rejected status yields ErrRejected.
// Test Case ID: MAIL-01
func TestMandrill_Send(t *testing.T) {
	status := "sent"
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/send.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"email":"ada@acme.com","status":"` + status + `","reject_reason":"hard-bounce"}]`))
	}))
	defer srv.Close()

	m := NewMandrill(MandrillConfig{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, m.Send(context.Background(), sample()))

	assert.Equal(t, "key", got["key"])
	msg := got["message"].(map[string]any)
	assert.Equal(t, "noreply@cloudbday.example", msg["from_email"])
	assert.Equal(t, "People Team", msg["from_name"])
	assert.Equal(t, map[string]any{"Reply-To": "hr@acme.com"}, msg["headers"])
	assert.Equal(t, []any{"birthday"}, msg["tags"])
	assert.Equal(t, true, msg["track_opens"])

	status = "rejected"
	assert.ErrorIs(t, m.Send(context.Background(), sample()), ErrRejected)
}

// TestPurpose: Validates the rendered multipart message.
// Scope: Unit Test
// Expected: Headers carry from, to and reply-to; the body has a text and an HTML part.
// Test Case ID: MAIL-02
func TestRender(t *testing.T) {
	raw, err := Render(sample(), time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, `"People Team" <noreply@cloudbday.example>`, msg.Header.Get("From"))
	assert.Equal(t, "hr@acme.com", msg.Header.Get("Reply-To"))
	assert.Contains(t, msg.Header.Get("To"), "ada@acme.com")

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		types = append(types, p.Header.Get("Content-Type"))
		body, err := io.ReadAll(p)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Ada")
	}
	assert.Equal(t, []string{"text/plain; charset=utf-8", "text/html; charset=utf-8"}, types)
}

func TestLogTransport(t *testing.T) {
	assert.NoError(t, LogTransport{}.Send(context.Background(), sample()))
}
