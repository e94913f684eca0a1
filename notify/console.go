// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"log/slog"

	"github.com/danielhkuo/ballotbox/models"
)

// ConsoleChannel writes codes to the log. Development only.
type ConsoleChannel struct {
	logger *slog.Logger
}

func NewConsoleChannel(logger *slog.Logger) *ConsoleChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleChannel{logger: logger}
}

func (c *ConsoleChannel) Name() string { return models.ChannelConsole }

func (c *ConsoleChannel) CanReach(Recipient) bool { return true }

func (c *ConsoleChannel) Send(_ context.Context, r Recipient, m Message) error {
	c.logger.Warn("dev delivery: otp written to log",
		"voter_id", r.VoterID,
		"code", m.Code,
		"expires_in", DescribeDuration(m.ExpiresIn),
	)
	return nil
}
