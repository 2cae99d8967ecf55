package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/pkg/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleCoin = domain.CandidateCoin{ID: "elon-musk-coin", Name: "Elon Musk Coin", Symbol: "EMC"}

type fakeChannel struct {
	name  string
	err   error
	calls int
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(context.Context, domain.CandidateCoin) error {
	f.calls++
	return f.err
}

func TestMessageFormatting(t *testing.T) {
	require.Equal(t, "Celebrity Coin Alert: Elon Musk Coin (EMC)", Subject(sampleCoin))

	content := MarkdownContent(sampleCoin, "")
	require.Equal(t, "**Celebrity Coin Alert**\n"+
		"**Name**: Elon Musk Coin (EMC)\n"+
		"**Price**: unknown\n"+
		"**Link**: https://www.coingecko.com/en/coins/elon-musk-coin", content)

	priced := sampleCoin
	p := decimal.RequireFromString("0.0042")
	priced.Price = &p
	body := PlainBody(priced, "https://example.org/coins")
	require.Contains(t, body, "Coin ID: elon-musk-coin\n")
	require.Contains(t, body, "Price: $0.0042\n")
	require.Contains(t, body, "More info: https://example.org/coins/elon-musk-coin\n")
}

func TestDispatcherIsolatesChannelFailures(t *testing.T) {
	bad := &fakeChannel{name: "email", err: errors.New("smtp down")}
	good := &fakeChannel{name: "webhook"}
	d := NewDispatcher(bad, good)

	res := d.Notify(context.Background(), sampleCoin)
	require.Equal(t, 1, bad.calls)
	require.Equal(t, 1, good.calls)
	require.True(t, res.Delivered())
	require.Equal(t, []string{"webhook"}, res.DeliveredChannels())
	require.Equal(t, []string{"email"}, res.FailedChannels())
	require.Equal(t, []string{"email", "webhook"}, d.Channels())
}

func TestDispatcherAllFailed(t *testing.T) {
	d := NewDispatcher(&fakeChannel{name: "email", err: errors.New("x")}, &fakeChannel{name: "webhook", err: errors.New("y")})
	res := d.Notify(context.Background(), sampleCoin)
	require.False(t, res.Delivered())
	require.Len(t, res.FailedChannels(), 2)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{AlertMethod: config.AlertDiscord}
	d, err := FromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"webhook"}, d.Channels())

	cfg.AlertMethod = config.AlertBoth
	d, err = FromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"email", "webhook"}, d.Channels())

	cfg.AlertMethod = "none"
	_, err = FromConfig(cfg)
	require.Error(t, err)
}

func TestWebhookChannelPostsPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(config.WebhookConfig{URL: srv.URL, Username: "Sentry", Timeout: time.Second}, "")
	require.NoError(t, ch.Send(context.Background(), sampleCoin))
	require.Equal(t, "Sentry", got["username"])
	_, hasAvatar := got["avatar_url"]
	require.False(t, hasAvatar)
	require.True(t, strings.HasPrefix(got["content"].(string), "**Celebrity Coin Alert**"))
}

func TestWebhookChannelErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	require.Error(t, NewWebhookChannel(config.WebhookConfig{URL: srv.URL}, "").Send(context.Background(), sampleCoin))
	require.Error(t, NewWebhookChannel(config.WebhookConfig{}, "").Send(context.Background(), sampleCoin))
}

func TestEmailChannelComposesMessage(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	ch := NewEmailChannel(config.EmailConfig{
		Sender:     "bot@example.com",
		Password:   "pw",
		SMTPHost:   "smtp.example.com",
		SMTPPort:   587,
		Recipients: []string{"a@example.com", "b@example.com"},
	}, "")
	ch.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	ch.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	require.NoError(t, ch.Send(context.Background(), sampleCoin))
	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.NotNil(t, gotAuth)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	require.Contains(t, gotMsg, "To: a@example.com, b@example.com\r\n")
	require.Contains(t, gotMsg, "Subject: Celebrity Coin Alert: Elon Musk Coin (EMC)\r\n")
	require.Contains(t, gotMsg, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
	require.Contains(t, gotMsg, "\r\n\r\nCoin ID: elon-musk-coin\r\n")
	require.Contains(t, gotMsg, "Price: unknown\r\n")
}

func TestEmailChannelFailures(t *testing.T) {
	ch := NewEmailChannel(config.EmailConfig{Sender: "bot@example.com", SMTPHost: "h", SMTPPort: 25, Recipients: []string{"a@example.com"}}, "")
	ch.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }
	require.ErrorContains(t, ch.Send(context.Background(), sampleCoin), "connection refused")

	ch.cfg.Recipients = nil
	require.Error(t, ch.Send(context.Background(), sampleCoin))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, ch.Send(ctx, sampleCoin), context.Canceled)
}
