// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/danielhkuo/ballotbox/models"
)

// SMSChannel posts codes to an HTTP SMS gateway as {"to": ..., "message": ...}
type SMSChannel struct {
	url    string
	token  string
	client *http.Client
}

func NewSMSChannel(url, token string, client *http.Client) *SMSChannel {
	if client == nil {
		client = http.DefaultClient
	}
	return &SMSChannel{url: url, token: token, client: client}
}

func (c *SMSChannel) Name() string { return models.ChannelSMS }

func (c *SMSChannel) CanReach(r Recipient) bool { return r.Phone != "" }

type smsPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (c *SMSChannel) Send(ctx context.Context, r Recipient, m Message) error {
	body, err := json.Marshal(smsPayload{To: r.Phone, Message: m.Text()})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}
