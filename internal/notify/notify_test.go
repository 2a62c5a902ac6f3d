package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"qms/queue-core/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInfo() Info {
	return Info{
		Ticket: models.Ticket{
			TicketID:      "t1",
			Number:        "A007",
			RequesterName: "Siti",
			Email:         "siti@example.com",
			Phone:         "081234567890",
			NotifyEmail:   true,
			NotifySMS:     true,
		},
		ServiceName:          "Pelayanan KTP",
		Counter:              "3",
		Position:             4,
		EstimatedWaitMinutes: 36,
	}
}

func TestComposeSelectsChannels(t *testing.T) {
	info := sampleInfo()
	messages := Compose(KindRegistered, info)
	require.Len(t, messages, 2)
	assert.Equal(t, ChannelEmail, messages[0].Channel)
	assert.Equal(t, "siti@example.com", messages[0].Recipient)
	assert.Equal(t, "Nomor Antrian A007 - Pelayanan KTP", messages[0].Subject)
	assert.Contains(t, messages[0].Body, "Perkiraan waktu tunggu: 36 menit")
	assert.Equal(t, ChannelText, messages[1].Channel)
	assert.Empty(t, messages[1].Subject)

	info.Ticket.NotifyEmail = false
	messages = Compose(KindCalled, info)
	require.Len(t, messages, 1)
	assert.Equal(t, "Antrian A007 dipanggil ke loket 3. Silakan menuju loket.", messages[0].Body)

	info.Ticket.Phone = " "
	assert.Empty(t, Compose(KindCalled, info))
	assert.False(t, Eligible(info.Ticket))

	// flags are independent of contact presence
	flagsOnly := models.Ticket{NotifyEmail: true, NotifySMS: true}
	assert.False(t, Eligible(flagsOnly))
	contactOnly := models.Ticket{Email: "a@b.c", Phone: "0812345678"}
	assert.False(t, Eligible(contactOnly))
}

func TestApproachingBodyMentionsTicketsAhead(t *testing.T) {
	messages := Compose(KindApproaching, sampleInfo())
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0].Body, "Masih ada 3 antrian sebelum Anda.")
	assert.Contains(t, messages[0].Subject, "Segera Tiba")
}

func TestWebhookSender(t *testing.T) {
	var got map[string]string
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	sender := NewTextSender("webhook", server.URL, "secret", slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := sender.Send(context.Background(), Message{Channel: ChannelText, Recipient: "0812", Body: "halo"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, map[string]string{"channel": "text", "recipient": "0812", "message": "halo"}, got)
}

func TestWebhookSenderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	sender := &WebhookSender{URL: server.URL, Client: &http.Client{Timeout: time.Second}}
	err := sender.Send(context.Background(), Message{Channel: ChannelText, Recipient: "0812", Body: "halo"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestNewTextSenderFallsBackToLog(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.IsType(t, LogSender{}, NewTextSender("webhook", "", "", log))
	assert.IsType(t, LogSender{}, NewTextSender("", "", "", log))
	assert.IsType(t, NoopSender{}, NewTextSender("noop", "", "", log))
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func TestNotifierRoutesAndReportsFailures(t *testing.T) {
	email := &recordingSender{err: errors.New("smtp down")}
	text := &recordingSender{}
	n := NewNotifier(email, text, slog.New(slog.NewTextHandler(io.Discard, nil)))

	eligible, err := n.Notify(context.Background(), KindCalled, sampleInfo())
	assert.True(t, eligible)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, email.sent, 1)
	assert.Len(t, text.sent, 1)

	eligible, err = n.Notify(context.Background(), KindCalled, Info{Ticket: models.Ticket{Number: "A001"}})
	assert.False(t, eligible)
	assert.NoError(t, err)
}

func TestNotifierDefaultsLogger(t *testing.T) {
	email := &recordingSender{err: errors.New("smtp down")}
	n := NewNotifier(email, nil, nil)

	var err error
	require.NotPanics(t, func() {
		_, err = n.Notify(context.Background(), KindRegistered, sampleInfo())
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, email.sent, 1)
}
