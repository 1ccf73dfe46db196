// Package notify alerts operators about bet outcomes and stuck resolutions.
// Alerts are dispatched to every registered sender (Telegram, Discord) and
// filtered by alert type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/visioninhope/BetM3/internal/domain"
)

// Alert types operators can subscribe to.
const (
	AlertBetResolved   = "bet_resolved"
	AlertBetCancelled  = "bet_cancelled"
	AlertAwaitingAdmin = "awaiting_admin"
	AlertError         = "error"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches alerts to its senders. Only alert types in the allowed
// set are forwarded; an empty set allows everything.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given senders and alert types.
func NewNotifier(senders []Sender, alerts []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		if a = strings.TrimSpace(a); a != "" {
			allowed[a] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends title and message if alert is allowed.
func (n *Notifier) Notify(ctx context.Context, alert, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.allowed) > 0 && !n.allowed[alert] {
		n.logger.DebugContext(ctx, "alert filtered out", slog.String("alert", alert))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// PublishEvents turns committed registry events into alerts. Events that do
// not concern operators are ignored.
func (n *Notifier) PublishEvents(ctx context.Context, events []domain.Event) error {
	var errs []error
	for _, ev := range events {
		alert, title, msg, ok := describe(ev)
		if !ok {
			continue
		}
		if err := n.Notify(ctx, alert, title, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AwaitingAdmin alerts that a bet passed its resolution deadline without
// consensus.
func (n *Notifier) AwaitingAdmin(ctx context.Context, d domain.BetDetails) error {
	return n.Notify(ctx, AlertAwaitingAdmin,
		fmt.Sprintf("Bet #%d awaiting admin", d.ID),
		fmt.Sprintf("%q passed its resolution deadline (%s) with %d/%d votes.",
			d.Condition, d.ResolutionDeadline.Format("2006-01-02 15:04 MST"), d.VoteCount, d.ParticipantCount),
	)
}

// Error alerts about an engine failure.
func (n *Notifier) Error(ctx context.Context, component string, err error) error {
	return n.Notify(ctx, AlertError, "BetM3 error: "+component, err.Error())
}

func describe(ev domain.Event) (alert, title, message string, ok bool) {
	switch data := ev.Data.(type) {
	case domain.BetResolved:
		outcome := "false"
		if data.WinningOutcome {
			outcome = "true"
		}
		how := "by consensus"
		if data.Forced {
			how = "by the administrator"
		}
		return AlertBetResolved,
			fmt.Sprintf("Bet #%d resolved", data.BetID),
			fmt.Sprintf("Outcome %s %s. Simulated yield %s.", outcome, how, data.SimulatedYield),
			true
	case domain.BetResolutionCancelled:
		return AlertBetCancelled,
			fmt.Sprintf("Bet #%d cancelled", data.BetID),
			"All stakes were refunded.",
			true
	}
	return "", "", "", false
}
