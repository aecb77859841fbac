package domain

// Stage names a step of the guided flow.
type Stage string

const (
	StageWelcome         Stage = "welcome"
	StageScrollShown     Stage = "scroll"
	StageResponsePending Stage = "response"
	StageStats           Stage = "stats"
)

// Identity is the traveler's self-declared profile. It is editable at every stage.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Offering is the chosen provider and scroll.
type Offering struct {
	Provider  string `json:"provider"`
	ScrollKey string `json:"scroll_key"`
}

// Complete reports whether both offering fields are set.
func (o Offering) Complete() bool {
	return o.Provider != "" && o.ScrollKey != ""
}

// Reply is the outcome of a completed submission.
type Reply struct {
	Text string `json:"text"`
}

// State is the stage-specific part of a Session. Only the types in this
// package implement it.
type State interface {
	Stage() Stage
	offering() Offering
}

// Welcome is the landing stage; Draft holds whatever the form currently selects.
type Welcome struct {
	Draft Offering
}

// ScrollShown displays the chosen scroll before it is sent.
type ScrollShown struct {
	Offering Offering
}

// ResponsePending is entered on Send. Reply stays nil until the submission
// for this visit completes.
type ResponsePending struct {
	Offering Offering
	Reply    *Reply
}

// Stats shows the traveler's journey.
type Stats struct {
	Offering Offering
}

func (Welcome) Stage() Stage         { return StageWelcome }
func (ScrollShown) Stage() Stage     { return StageScrollShown }
func (ResponsePending) Stage() Stage { return StageResponsePending }
func (Stats) Stage() Stage           { return StageStats }

func (w Welcome) offering() Offering         { return w.Draft }
func (s ScrollShown) offering() Offering     { return s.Offering }
func (r ResponsePending) offering() Offering { return r.Offering }
func (s Stats) offering() Offering           { return s.Offering }

// Session is one traveler's interaction. It is a value: transitions return a
// new Session and never mutate the receiver.
type Session struct {
	Identity Identity
	State    State
}

// NewSession returns a session at the Welcome stage.
func NewSession() Session {
	return Session{State: Welcome{}}
}

func (s Session) state() State {
	if s.State == nil {
		return Welcome{}
	}
	return s.State
}

// Stage returns the current stage.
func (s Session) Stage() Stage {
	return s.state().Stage()
}

// Offering returns the provider and scroll currently selected or locked in.
func (s Session) Offering() Offering {
	return s.state().offering()
}

// OfferingEditable reports whether provider and scroll may still change.
func (s Session) OfferingEditable() bool {
	switch s.state().(type) {
	case Welcome, ScrollShown:
		return true
	default:
		return false
	}
}

// ResponseSent reports whether the submission for the current visit to
// ResponsePending has completed.
func (s Session) ResponseSent() bool {
	p, ok := s.state().(ResponsePending)
	return ok && p.Reply != nil
}

// ResponseText returns the stored reply text, or "" when none is held.
func (s Session) ResponseText() string {
	if p, ok := s.state().(ResponsePending); ok && p.Reply != nil {
		return p.Reply.Text
	}
	return ""
}

// WithState returns a copy of s in the given state.
func (s Session) WithState(st State) Session {
	s.State = st
	return s
}

// WithIdentity returns a copy of s with the given identity.
func (s Session) WithIdentity(id Identity) Session {
	s.Identity = id
	return s
}
