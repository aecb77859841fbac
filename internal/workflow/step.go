package workflow

import (
	"context"

	"github.com/ashureev/whisperbridge/internal/domain"
)

// Step applies f, then action (when non-empty), then projects the result.
// It is the single entry point transports use for one user interaction.
//
// The returned session is the one to keep: on a validation failure it holds
// the applied form and the view carries the warning; on any other failure
// the view is zero. Only ActionRender can run a submission.
func (c *Controller) Step(ctx context.Context, s domain.Session, f Form, action Action) (domain.Session, View, error) {
	next, err := ApplyForm(s, f)
	if err != nil {
		return s, View{}, err
	}

	if action != "" {
		moved, err := c.Dispatch(ctx, next, action)
		if err != nil {
			warning, ok := WarningOf(err)
			if !ok {
				return next, View{}, err
			}
			v, verr := c.View(ctx, next)
			if verr != nil {
				return next, View{}, verr
			}
			return next, v.WithWarning(warning), err
		}
		next = moved
	}

	v, err := c.View(ctx, next)
	if err != nil {
		return next, View{}, err
	}
	return next, v, nil
}
