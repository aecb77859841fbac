package workflow

import (
	"context"
	"fmt"

	"github.com/ashureev/whisperbridge/internal/domain"
)

// Journey looks up the stats for email. A missing user is not an error;
// the returned Journey reports Found=false.
func (c *Controller) Journey(ctx context.Context, email string) (domain.Journey, error) {
	if blank(email) {
		return domain.Journey{}, &ValidationError{Action: ActionViewJourney, Warning: domain.JourneyWarningText}
	}
	user, err := c.ledger.FindUserByEmail(ctx, email)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("journey: %w", err)
	}
	return domain.JourneyFor(email, user), nil
}
