// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"

	"github.com/danielhkuo/ballotbox/audit"
	"github.com/danielhkuo/ballotbox/metrics"
)

// AuditResults turns delivery outcomes into audit events and metrics
func AuditResults(rec audit.Recorder, m *metrics.Metrics) ResultFunc {
	return func(ctx context.Context, res Result) {
		for name, err := range res.Failed {
			m.DeliveryFailed(name)
			rec.Record(ctx, audit.Entry{
				ActorType:  audit.ActorSystem,
				Action:     audit.ActionOTPDeliveryFailed,
				EntityType: audit.EntityVerification,
				EntityID:   res.Job.VerificationID,
				Payload: map[string]any{
					"channel": name,
					"voterId": res.Job.Recipient.VoterID,
					"error":   err.Error(),
				},
			})
		}
		if len(res.Delivered) > 0 {
			rec.Record(ctx, audit.Entry{
				ActorType:  audit.ActorSystem,
				Action:     audit.ActionOTPDelivered,
				EntityType: audit.EntityVerification,
				EntityID:   res.Job.VerificationID,
				Payload:    map[string]any{"channels": res.Delivered},
			})
		}
	}
}
