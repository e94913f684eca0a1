// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	ErrQueueFull = errors.New("delivery queue is full")
	ErrClosed    = errors.New("dispatcher is closed")
	ErrNoChannel = errors.New("no channel can reach recipient")
)

// Recipient is where a code can be sent
type Recipient struct {
	VoterID string
	Name    string
	Email   string
	Phone   string
}

// Message is the content of one delivery
type Message struct {
	Code      string
	ExpiresIn time.Duration
}

// Text renders the body shared by every channel
func (m Message) Text() string {
	return fmt.Sprintf("Your voting verification code is %s. It expires in %s. Do not share it with anyone.",
		m.Code, DescribeDuration(m.ExpiresIn))
}

// Channel delivers a code over one medium
type Channel interface {
	Name() string
	CanReach(r Recipient) bool
	Send(ctx context.Context, r Recipient, m Message) error
}

// Job is one queued delivery. Channels lists the channel names to use.
type Job struct {
	VerificationID string
	Recipient      Recipient
	Message        Message
	Channels       []string
}

// Result reports how a job went, per channel
type Result struct {
	Job       Job
	Delivered []string
	Failed    map[string]error
}

// DescribeDuration renders d the way people say it, e.g. "5 minutes"
func DescribeDuration(d time.Duration) string {
	base := time.Unix(0, 0)
	return strings.TrimSpace(humanize.RelTime(base, base.Add(d), "", ""))
}
