package workflow

import (
	"fmt"
	"strings"

	"github.com/ashureev/whisperbridge/internal/domain"
)

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Load moves Welcome to ScrollShown once name, email, provider and scroll
// are all filled in.
func Load(s domain.Session) (domain.Session, error) {
	w, ok := s.State.(domain.Welcome)
	if !ok && s.State != nil {
		return s, unavailable(ActionLoad, s)
	}
	if blank(s.Identity.Name) || blank(s.Identity.Email) || blank(w.Draft.Provider) || blank(w.Draft.ScrollKey) {
		return s, &ValidationError{Action: ActionLoad, Warning: domain.LoadWarningText}
	}
	return s.WithState(domain.ScrollShown{Offering: w.Draft}), nil
}

// Send moves ScrollShown to ResponsePending with no reply, so the next
// render submits exactly once.
func Send(s domain.Session) (domain.Session, error) {
	shown, ok := s.State.(domain.ScrollShown)
	if !ok {
		return s, unavailable(ActionSend, s)
	}
	return s.WithState(domain.ResponsePending{Offering: shown.Offering}), nil
}

// SubmitAnother returns to Welcome with provider, scroll and reply cleared.
// Name and email are kept.
func SubmitAnother(s domain.Session) (domain.Session, error) {
	if _, ok := s.State.(domain.ResponsePending); !ok {
		return s, unavailable(ActionSubmitAnother, s)
	}
	return s.WithState(domain.Welcome{}), nil
}

// ViewJourney moves any stage to Stats when an email is present.
func ViewJourney(s domain.Session) (domain.Session, error) {
	if blank(s.Identity.Email) {
		return s, &ValidationError{Action: ActionViewJourney, Warning: domain.JourneyWarningText}
	}
	return s.WithState(domain.Stats{Offering: s.Offering()}), nil
}

// ReturnHome moves any non-Welcome stage back to Welcome. The selection is
// kept as the draft; a held reply is dropped.
func ReturnHome(s domain.Session) (domain.Session, error) {
	if s.Stage() == domain.StageWelcome {
		return s, unavailable(ActionReturnHome, s)
	}
	return s.WithState(domain.Welcome{Draft: s.Offering()}), nil
}

// SetIdentity replaces name and email. Identity is editable at every stage.
func SetIdentity(s domain.Session, name, email string) domain.Session {
	return s.WithIdentity(domain.Identity{Name: name, Email: email})
}

// SelectOffering changes provider and scroll while the stage allows it.
func SelectOffering(s domain.Session, provider, scrollKey string) (domain.Session, error) {
	o := domain.Offering{Provider: provider, ScrollKey: scrollKey}
	switch st := s.State.(type) {
	case nil:
		return s.WithState(domain.Welcome{Draft: o}), nil
	case domain.Welcome:
		st.Draft = o
		return s.WithState(st), nil
	case domain.ScrollShown:
		st.Offering = o
		return s.WithState(st), nil
	default:
		if s.Offering() == o {
			return s, nil
		}
		return s, fmt.Errorf("%w: %s", ErrOfferingLocked, s.Stage())
	}
}

// Form carries the editable fields of the left-hand panel. Nil fields are
// left as they are.
type Form struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Provider  *string `json:"provider,omitempty"`
	ScrollKey *string `json:"scroll_key,omitempty"`
}

// ApplyForm applies f the way a form submit would. While the offering is
// locked, blank provider and scroll values are ignored (a disabled control
// submits nothing), values equal to the locked ones are accepted, and any
// other value fails with ErrOfferingLocked; nothing is applied then.
func ApplyForm(s domain.Session, f Form) (domain.Session, error) {
	id := s.Identity
	if f.Name != nil {
		id.Name = *f.Name
	}
	if f.Email != nil {
		id.Email = *f.Email
	}

	o := s.Offering()
	locked := !s.OfferingEditable()
	if f.Provider != nil && !(locked && blank(*f.Provider)) {
		o.Provider = *f.Provider
	}
	if f.ScrollKey != nil && !(locked && blank(*f.ScrollKey)) {
		o.ScrollKey = *f.ScrollKey
	}

	next, err := SelectOffering(s, o.Provider, o.ScrollKey)
	if err != nil {
		return s, err
	}
	return next.WithIdentity(id), nil
}

func unavailable(a Action, s domain.Session) error {
	return fmt.Errorf("%w: %s during %s", ErrActionUnavailable, a, s.Stage())
}
