package processor

import (
	"context"

	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/pkg/logger"
)

// ProviderOptOutChecker looks up carrier-level opt-outs the local consent
// flags never see (STOP replies handled by the SMS provider).
type ProviderOptOutChecker interface {
	IsOptedOut(ctx context.Context, phone string) (bool, error)
}

// OptOutGate decides whether a marketing send may go out. Transactional
// sends (assignment acknowledgments, follow-up notices) are never gated;
// only campaign traffic passes through here.
type OptOutGate struct {
	provider ProviderOptOutChecker
}

func NewOptOutGate(provider ProviderOptOutChecker) *OptOutGate {
	return &OptOutGate{provider: provider}
}

// Blocked reports whether a campaign send to this customer on this channel
// must be skipped. A nil customer means the recipient was enqueued without
// a profile; with no consent record the send is blocked.
func (g *OptOutGate) Blocked(ctx context.Context, c *model.Customer, ch model.Channel) (bool, string) {
	if c == nil {
		return true, "no customer consent record"
	}
	if !c.OptedIn(ch) {
		return true, "customer opted out or unreachable"
	}

	if ch == model.ChannelSMS && g.provider != nil {
		optedOut, err := g.provider.IsOptedOut(ctx, c.Phone)
		if err != nil {
			logger.Warn("provider opt-out check failed, allowing send",
				"customer_id", c.ID, "error", err)
			return false, ""
		}
		if optedOut {
			return true, "provider opt-out registry"
		}
	}

	return false, ""
}
