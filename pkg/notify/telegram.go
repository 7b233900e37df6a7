package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	maxAttempts    = 3
)

type telegram struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegram returns a notifier posting to the Telegram bot sendMessage API.
func NewTelegram(botToken, chatID string, timeout time.Duration) Notifier {
	return &telegram{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func (t *telegram) Notify(ctx context.Context, reg Registration) (int, error) {
	text := fmt.Sprintf(`🎉 New Domain Registration 🎉

Domain: %s
Owner: %s
Transaction: %s
Amount: %s
Registered: %s
Expires: %s`,
		reg.DomainName,
		reg.WalletAddress,
		reg.TxHash,
		reg.Amount,
		reg.ReservedAt.Format(time.RFC1123),
		reg.ExpiresAt.Format(time.RFC1123),
	)

	attempts := 0
	operation := func() (struct{}, error) {
		attempts++
		return struct{}{}, t.send(ctx, text)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second

	notifyRetry := func(err error, d time.Duration) {
		logrus.WithError(err).WithField("backoff", d).Warnf("retrying telegram notification for %s", reg.DomainName)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(notifyRetry))

	return attempts, err
}

func (t *telegram) send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding telegram response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("telegram api: %s", out.Description)
	}

	return nil
}
