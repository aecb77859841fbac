package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/whisperbridge/internal/domain"
	"github.com/ashureev/whisperbridge/internal/responder"
)

// Submit performs the submission for a ResponsePending session that holds
// no reply yet. Any other session is returned as is without touching the
// store. Errors abort the whole submission and leave s unchanged.
func (c *Controller) Submit(ctx context.Context, s domain.Session) (domain.Session, error) {
	pending, ok := s.State.(domain.ResponsePending)
	if !ok || pending.Reply != nil {
		return s, nil
	}
	o := pending.Offering

	cat, err := c.catalogs.Catalog(ctx)
	if err != nil {
		return s, fmt.Errorf("submit: %w", err)
	}

	user, err := c.ledger.RecordOffering(ctx, s.Identity)
	if err != nil {
		return s, fmt.Errorf("submit: %w", err)
	}

	text := cat.Text(o.ScrollKey)
	sub, err := c.ledger.InsertSubmission(ctx, domain.ScrollSubmission{
		UserID:    user.ID,
		Title:     o.ScrollKey,
		Text:      text,
		BridgedTo: o.Provider,
	})
	if err != nil {
		return s, fmt.Errorf("submit: %w", err)
	}
	slog.Info("Scroll submitted",
		"user_id", user.ID,
		"submission_id", sub.ID,
		"scroll", o.ScrollKey,
		"provider", o.Provider,
		"scroll_count", user.ScrollCount,
	)

	reply, err := c.responder.Respond(ctx, responder.Request{
		ScrollKey:  o.ScrollKey,
		ScrollText: text,
		Provider:   o.Provider,
	})
	if err != nil {
		return s, fmt.Errorf("submit: %w", err)
	}

	pending.Reply = &domain.Reply{Text: reply}
	return s.WithState(pending), nil
}
