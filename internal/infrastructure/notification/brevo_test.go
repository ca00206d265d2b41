package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"holidaysri-admin/internal/domain/event"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrevoMailerSend(t *testing.T) {
	var got brevoPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/smtp/email", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId":"<abc@brevo>"}`))
	}))
	defer srv.Close()

	m := NewBrevoMailer(BrevoConfig{APIKey: "test-key", SenderEmail: "finance@holidaysri.com", SenderName: "Holidaysri", BaseURL: srv.URL}, zerolog.Nop())
	err := m.Send(context.Background(), Message{ToEmail: "kamal@example.com", Subject: "Hi", HTML: "<p>x</p>"})
	require.NoError(t, err)

	assert.Equal(t, "finance@holidaysri.com", got.Sender.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "kamal", got.To[0].Name)
}

func TestBrevoMailerSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"unauthorized","message":"Key not found"}`))
	}))
	defer srv.Close()

	m := NewBrevoMailer(BrevoConfig{APIKey: "bad", SenderEmail: "a@b.c", SenderName: "x", BaseURL: srv.URL}, zerolog.Nop())
	err := m.Send(context.Background(), Message{ToEmail: "kamal@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Key not found")

	assert.Error(t, m.Send(context.Background(), Message{ToEmail: "not-an-address"}))
}

type recordingMailer struct{ sent []Message }

func (r *recordingMailer) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func TestPayoutNotifierRendersDecision(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewPayoutNotifier(mailer, zerolog.Nop())

	err := n.Handle(context.Background(), &event.PayoutRequestRejected{
		RequestID:      "r-1",
		Variant:        "hsc_earned",
		RequesterName:  "Kamal",
		RequesterEmail: "kamal@example.com",
		TotalAmount:    decimal.RequireFromString("120.5"),
		Currency:       "HSC",
		Reason:         "Duplicate <claim>",
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)

	msg := mailer.sent[0]
	assert.Equal(t, "Update on your HSC earned claim", msg.Subject)
	assert.Contains(t, msg.HTML, "120.5 HSC")
	assert.Contains(t, msg.HTML, "Duplicate &lt;claim&gt;")

	require.NoError(t, n.Handle(context.Background(), &event.PayoutRequestPaid{RequestID: "r-2"}))
	assert.Len(t, mailer.sent, 1)
}
