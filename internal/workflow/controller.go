// Package workflow implements the session workflow controller: the stage
// machine that walks a traveler from Welcome through ScrollShown and
// ResponsePending, and the one submission made per Send.
package workflow

import (
	"context"
	"fmt"

	"github.com/ashureev/whisperbridge/internal/catalog"
	"github.com/ashureev/whisperbridge/internal/domain"
	"github.com/ashureev/whisperbridge/internal/responder"
)

// Action names a user-initiated event.
type Action string

const (
	ActionLoad          Action = "load"
	ActionSend          Action = "send"
	ActionSubmitAnother Action = "submit_another"
	ActionViewJourney   Action = "view_journey"
	ActionReturnHome    Action = "return_home"
	ActionRender        Action = "render"
	ActionExit          Action = "exit"
)

// Ledger is the part of the data store the controller writes to and reads
// stats from.
type Ledger interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.UserRecord, error)
	RecordOffering(ctx context.Context, id domain.Identity) (*domain.UserRecord, error)
	InsertSubmission(ctx context.Context, sub domain.ScrollSubmission) (domain.ScrollSubmission, error)
}

// Catalogs hands out the current scroll catalog.
type Catalogs interface {
	Catalog(ctx context.Context) (*catalog.Catalog, error)
}

// Controller drives sessions through their stages. It holds no session
// state and is safe for concurrent use.
type Controller struct {
	ledger    Ledger
	catalogs  Catalogs
	responder responder.Responder
	providers []string
}

// Option configures a Controller.
type Option func(*Controller)

// WithProviders sets the provider names offered in the form.
func WithProviders(providers []string) Option {
	return func(c *Controller) {
		if len(providers) > 0 {
			c.providers = append([]string(nil), providers...)
		}
	}
}

// New creates a controller.
func New(ledger Ledger, catalogs Catalogs, resp responder.Responder, opts ...Option) *Controller {
	c := &Controller{
		ledger:    ledger,
		catalogs:  catalogs,
		responder: resp,
		providers: domain.DefaultProviders(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns the configured provider names.
func (c *Controller) Providers() []string {
	return append([]string(nil), c.providers...)
}

// Dispatch applies action to s. ActionRender runs a pending submission.
// Exit is handled by the transport and is not accepted here.
func (c *Controller) Dispatch(ctx context.Context, s domain.Session, action Action) (domain.Session, error) {
	switch action {
	case ActionLoad:
		return Load(s)
	case ActionSend:
		return Send(s)
	case ActionSubmitAnother:
		return SubmitAnother(s)
	case ActionViewJourney:
		return ViewJourney(s)
	case ActionReturnHome:
		return ReturnHome(s)
	case ActionRender:
		return c.Submit(ctx, s)
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Render runs the pending submission, if any, and projects the result.
// On failure the session is returned unchanged so the next render retries.
func (c *Controller) Render(ctx context.Context, s domain.Session) (domain.Session, View, error) {
	next, err := c.Submit(ctx, s)
	if err != nil {
		return s, View{}, err
	}
	v, err := c.View(ctx, next)
	if err != nil {
		return next, View{}, err
	}
	return next, v, nil
}

// Available lists the actions the stage of s offers.
func Available(s domain.Session) []Action {
	var out []Action
	switch st := s.State.(type) {
	case nil, domain.Welcome:
		out = append(out, ActionLoad)
	case domain.ScrollShown:
		out = append(out, ActionSend)
	case domain.ResponsePending:
		if st.Reply != nil {
			out = append(out, ActionSubmitAnother)
		}
	}
	out = append(out, ActionViewJourney)
	if s.Stage() != domain.StageWelcome {
		out = append(out, ActionReturnHome)
	}
	return append(out, ActionExit)
}

// Offers reports whether a is among the actions available for s.
func Offers(s domain.Session, a Action) bool {
	for _, got := range Available(s) {
		if got == a {
			return true
		}
	}
	return false
}
