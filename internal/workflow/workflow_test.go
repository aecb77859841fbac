package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/whisperbridge/internal/catalog"
	"github.com/ashureev/whisperbridge/internal/domain"
	"github.com/ashureev/whisperbridge/internal/responder"
	"github.com/ashureev/whisperbridge/internal/store"
)

// countingClient records writes and can fail them on demand.
type countingClient struct {
	store.Client
	inserts    map[string]int
	updates    int
	failInsert error
}

func (c *countingClient) Insert(ctx context.Context, collection string, record store.Record) ([]store.Record, error) {
	c.inserts[collection]++
	if c.failInsert != nil {
		return nil, c.failInsert
	}
	return c.Client.Insert(ctx, collection, record)
}

func (c *countingClient) Update(ctx context.Context, collection string, patch store.Record, filters ...store.Filter) ([]store.Record, error) {
	c.updates++
	return c.Client.Update(ctx, collection, patch, filters...)
}

func (c *countingClient) writes() int {
	n := c.updates
	for _, v := range c.inserts {
		n += v
	}
	return n
}

type fixture struct {
	mem    *store.MemoryStore
	client *countingClient
	repo   *store.Repository
	ctl    *Controller
	sent   int
}

func newFixture(t *testing.T, scrolls []domain.Scroll, reflections []domain.Reflection) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	for _, s := range scrolls {
		_, err := mem.Insert(ctx, store.ScrollsTable, store.Record{"title": s.Title, "text": s.Text})
		require.NoError(t, err)
	}
	for _, r := range reflections {
		_, err := mem.Insert(ctx, store.ReflectionsTable, store.Record{
			"scroll_name": r.ScrollName, "model_name": r.ModelName, "reflection_text": r.Text,
		})
		require.NoError(t, err)
	}

	f := &fixture{mem: mem}
	f.client = &countingClient{Client: mem, inserts: map[string]int{}}
	f.repo = store.NewRepository(f.client)
	resp := responder.NewReflectionResponder(f.repo,
		responder.WithDelay(0),
		responder.WithSleeper(func(context.Context, time.Duration) error {
			f.sent++
			return nil
		}),
		responder.WithPicker(func(int) int { return 0 }),
	)
	f.ctl = New(f.repo, catalog.NewProvider(f.repo, 0), resp)
	return f
}

var freedom = []domain.Scroll{{Title: "Freedom", Text: "T1"}}

func filled(provider, scroll string) domain.Session {
	s := SetIdentity(domain.NewSession(), "A", "a@x.com")
	s, _ = SelectOffering(s, provider, scroll)
	return s
}

func mustStep(t *testing.T, s domain.Session, step func(domain.Session) (domain.Session, error)) domain.Session {
	t.Helper()
	next, err := step(s)
	require.NoError(t, err)
	return next
}

func TestLoadRequiresAllFields(t *testing.T) {
	tests := []struct {
		name                         string
		userName, email, prov, scrol string
		wantOK                       bool
	}{
		{"all present", "A", "a@x.com", "Claude", "Freedom", true},
		{"missing name", "", "a@x.com", "Claude", "Freedom", false},
		{"missing email", "A", "", "Claude", "Freedom", false},
		{"missing provider", "A", "a@x.com", "", "Freedom", false},
		{"missing scroll", "A", "a@x.com", "Claude", "", false},
		{"whitespace only", "A", "  ", "Claude", "Freedom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SetIdentity(domain.NewSession(), tt.userName, tt.email)
			s, err := SelectOffering(s, tt.prov, tt.scrol)
			require.NoError(t, err)

			next, err := Load(s)
			if tt.wantOK {
				require.NoError(t, err)
				assert.Equal(t, domain.StageScrollShown, next.Stage())
				return
			}
			warning, ok := WarningOf(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, domain.LoadWarningText, warning)
			assert.Equal(t, s, next)
		})
	}
}

func TestOfferingLockedAfterSend(t *testing.T) {
	s := mustStep(t, filled("Claude", "Freedom"), Load)

	s, err := SelectOffering(s, "Grok", "Freedom")
	require.NoError(t, err, "offering stays editable while the scroll is shown")
	assert.Equal(t, "Grok", s.Offering().Provider)

	pending := mustStep(t, s, Send)
	stats := mustStep(t, pending, ViewJourney)

	for _, locked := range []domain.Session{pending, stats} {
		assert.False(t, locked.OfferingEditable())

		_, err := SelectOffering(locked, "Claude", "Freedom")
		assert.ErrorIs(t, err, ErrOfferingLocked)

		other := "Discernment"
		next, err := ApplyForm(locked, Form{ScrollKey: &other})
		assert.ErrorIs(t, err, ErrOfferingLocked)
		assert.Equal(t, locked, next)

		same := "Grok"
		name := "B"
		next, err = ApplyForm(locked, Form{Provider: &same, Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "B", next.Identity.Name)
		assert.Equal(t, domain.Offering{Provider: "Grok", ScrollKey: "Freedom"}, next.Offering())

		blank := ""
		next, err = ApplyForm(locked, Form{Provider: &blank, ScrollKey: &blank})
		require.NoError(t, err, "blank selects are ignored while locked")
		assert.Equal(t, locked.Offering(), next.Offering())
	}
}

func TestSendResetsReply(t *testing.T) {
	s := mustStep(t, filled("Claude", "Freedom"), Load)
	s = mustStep(t, s, Send)

	assert.Equal(t, domain.StageResponsePending, s.Stage())
	assert.False(t, s.ResponseSent())

	_, err := Send(s)
	assert.ErrorIs(t, err, ErrActionUnavailable)
}

func TestSubmissionRunsOncePerSend(t *testing.T) {
	f := newFixture(t, freedom, []domain.Reflection{{ScrollName: "Freedom", ModelName: "Claude", Text: "R1"}})
	ctx := context.Background()
	s := mustStep(t, filled("Claude", "Freedom"), Load)
	s = mustStep(t, s, Send)

	first, v1, err := f.ctl.Render(ctx, s)
	require.NoError(t, err)
	writes := f.client.writes()
	assert.Equal(t, 2, writes, "user insert and submission insert")

	second, v2, err := f.ctl.Render(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "R1", second.ResponseText())
	assert.Equal(t, first.ResponseText(), second.ResponseText())
	assert.Equal(t, writes, f.client.writes(), "second render must not write")
	assert.Equal(t, 1, f.sent)
	if diff := cmp.Diff(v1, v2); diff != "" {
		t.Errorf("views differ (-first +second):\n%s", diff)
	}

	// A new Send starts a new submission.
	again := mustStep(t, second, ReturnHome)
	again = mustStep(t, again, Load)
	again = mustStep(t, again, Send)
	assert.False(t, again.ResponseSent())
	_, _, err = f.ctl.Render(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 2, f.sent)
	assert.Equal(t, 1, f.client.updates, "existing user is incremented")

	user, err := f.repo.FindUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.ScrollCount)
}

func TestSubmissionUnknownScrollUsesFallbackText(t *testing.T) {
	f := newFixture(t, freedom, nil)
	ctx := context.Background()
	s := mustStep(t, filled("Claude", "Nowhere"), Load)
	s = mustStep(t, s, Send)

	_, _, err := f.ctl.Render(ctx, s)
	require.NoError(t, err)

	rows, err := f.mem.Select(ctx, store.SubmissionsTable)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ScrollMissingText, rows[0].String("text"))
	assert.Equal(t, "Nowhere", rows[0].String("title"))
	assert.Equal(t, "Claude", rows[0].String("bridged_to"))
}

func TestSubmissionWithoutReflectionUsesFallback(t *testing.T) {
	f := newFixture(t, freedom, []domain.Reflection{{ScrollName: "Freedom", ModelName: "Gemini", Text: "other"}})
	s := mustStep(t, filled("Claude", "Freedom"), Load)
	s = mustStep(t, s, Send)

	s, _, err := f.ctl.Render(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, domain.NoReflectionText, s.ResponseText())
}

func TestSubmissionFailureLeavesSessionRetryable(t *testing.T) {
	f := newFixture(t, freedom, nil)
	ctx := context.Background()
	s := mustStep(t, filled("Claude", "Freedom"), Load)
	s = mustStep(t, s, Send)

	boom := errors.New("store down")
	f.client.failInsert = boom
	next, _, err := f.ctl.Render(ctx, s)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, s, next)
	assert.False(t, next.ResponseSent())
	assert.Zero(t, f.sent, "responder is not reached")

	f.client.failInsert = nil
	next, _, err = f.ctl.Render(ctx, next)
	require.NoError(t, err)
	assert.True(t, next.ResponseSent())
}

func TestSubmissionCancelledContextAborts(t *testing.T) {
	f := newFixture(t, freedom, nil)
	s := mustStep(t, filled("Claude", "Freedom"), Load)
	s = mustStep(t, s, Send)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next, _, err := f.ctl.Render(ctx, s)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, next.ResponseSent())
}

func TestSubmitAnotherKeepsIdentityOnly(t *testing.T) {
	f := newFixture(t, freedom, nil)
	s := mustStep(t, filled("Claude", "Freedom"), Load)
	s = mustStep(t, s, Send)
	s, _, err := f.ctl.Render(context.Background(), s)
	require.NoError(t, err)
	require.True(t, s.ResponseSent())

	s = mustStep(t, s, SubmitAnother)
	assert.Equal(t, domain.StageWelcome, s.Stage())
	assert.Equal(t, domain.Identity{Name: "A", Email: "a@x.com"}, s.Identity)
	assert.Equal(t, domain.Offering{}, s.Offering())
	assert.False(t, s.ResponseSent())
	assert.Empty(t, s.ResponseText())
}

func TestReturnHomeFromEveryStage(t *testing.T) {
	f := newFixture(t, freedom, nil)
	shown := mustStep(t, filled("Claude", "Freedom"), Load)
	pending := mustStep(t, shown, Send)
	answered, _, err := f.ctl.Render(context.Background(), pending)
	require.NoError(t, err)
	stats := mustStep(t, answered, ViewJourney)

	for _, s := range []domain.Session{shown, pending, answered, stats} {
		home := mustStep(t, s, ReturnHome)
		assert.Equal(t, domain.StageWelcome, home.Stage())
		assert.False(t, home.ResponseSent())
		assert.Equal(t, s.Identity, home.Identity)
		assert.Equal(t, s.Offering(), home.Offering())
	}

	_, err = ReturnHome(domain.NewSession())
	assert.ErrorIs(t, err, ErrActionUnavailable)
}

func TestViewJourneyNeedsEmail(t *testing.T) {
	s := domain.NewSession()
	next, err := ViewJourney(s)
	warning, ok := WarningOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.JourneyWarningText, warning)
	assert.Equal(t, s, next)

	s = SetIdentity(s, "", "a@x.com")
	next = mustStep(t, s, ViewJourney)
	assert.Equal(t, domain.StageStats, next.Stage())
}

func TestJourneyTiers(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	for email, count := range map[string]int64{"zero@x": 0, "nine@x": 9, "ten@x": 10, "29@x": 29, "30@x": 30} {
		_, err := f.mem.Insert(ctx, store.UsersTable, store.Record{"email": email, "scroll_count": count})
		require.NoError(t, err)
	}

	tests := []struct {
		email     string
		found     bool
		lines     []string
		wantTier  domain.Tier
		offerings bool
	}{
		{"absent@x", false, []string{domain.NoOfferingsText}, "", false},
		{"zero@x", true, []string{domain.NoOfferingsText}, domain.TierNewTraveler, false},
		{"nine@x", true, []string{"Offerings made: 9", "Current Tier: New Traveler"}, domain.TierNewTraveler, true},
		{"ten@x", true, []string{"Offerings made: 10", "Current Tier: Journeyman"}, domain.TierJourneyman, true},
		{"29@x", true, []string{"Offerings made: 29", "Current Tier: Journeyman"}, domain.TierJourneyman, true},
		{"30@x", true, []string{"Offerings made: 30", "Current Tier: Sacred Keeper"}, domain.TierSacredKeeper, true},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			j, err := f.ctl.Journey(ctx, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.found, j.Found)
			assert.Equal(t, tt.wantTier, j.Tier)
			assert.Equal(t, tt.offerings, j.HasOfferings())
			assert.Equal(t, tt.lines, j.Lines())
		})
	}

	_, err := f.ctl.Journey(ctx, "")
	_, ok := WarningOf(err)
	assert.True(t, ok)
}

func TestDispatch(t *testing.T) {
	f := newFixture(t, freedom, nil)
	ctx := context.Background()
	s := filled("Claude", "Freedom")

	for _, a := range []Action{ActionLoad, ActionSend, ActionRender, ActionSubmitAnother} {
		var err error
		s, err = f.ctl.Dispatch(ctx, s, a)
		require.NoError(t, err, a)
	}
	assert.Equal(t, domain.StageWelcome, s.Stage())

	_, err := f.ctl.Dispatch(ctx, s, ActionExit)
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, err = f.ctl.Dispatch(ctx, s, ActionSend)
	assert.ErrorIs(t, err, ErrActionUnavailable)
}

func TestAvailableActions(t *testing.T) {
	shown := mustStep(t, filled("Claude", "Freedom"), Load)
	pending := mustStep(t, shown, Send)
	answered := pending.WithState(domain.ResponsePending{Offering: pending.Offering(), Reply: &domain.Reply{Text: "r"}})

	tests := []struct {
		name string
		s    domain.Session
		want []Action
	}{
		{"welcome", domain.NewSession(), []Action{ActionLoad, ActionViewJourney, ActionExit}},
		{"zero session", domain.Session{}, []Action{ActionLoad, ActionViewJourney, ActionExit}},
		{"scroll", shown, []Action{ActionSend, ActionViewJourney, ActionReturnHome, ActionExit}},
		{"pending", pending, []Action{ActionViewJourney, ActionReturnHome, ActionExit}},
		{"answered", answered, []Action{ActionSubmitAnother, ActionViewJourney, ActionReturnHome, ActionExit}},
		{"stats", mustStep(t, shown, ViewJourney), []Action{ActionViewJourney, ActionReturnHome, ActionExit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Available(tt.s))
		})
	}
}

func TestViewDoesNotSubmit(t *testing.T) {
	f := newFixture(t, freedom, nil)
	s := mustStep(t, filled("Claude", "Freedom"), Load)
	s = mustStep(t, s, Send)

	v, err := f.ctl.View(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, v.Content.Pending)
	assert.Equal(t, ResponseTitle, v.Content.Title)
	assert.False(t, v.Offering.Editable)
	assert.Empty(t, v.Offering.Providers)
	assert.Zero(t, f.client.writes())
}

func TestWelcomeViewListsNotChosenFirst(t *testing.T) {
	f := newFixture(t, freedom, nil)

	v, err := f.ctl.View(context.Background(), domain.NewSession())
	require.NoError(t, err)
	require.NotEmpty(t, v.Offering.Providers)
	require.NotEmpty(t, v.Offering.Scrolls)
	assert.Equal(t, NotChosen, v.Offering.Providers[0])
	assert.Equal(t, []string{NotChosen, "Freedom"}, v.Offering.Scrolls)
	assert.Equal(t, "", v.Offering.Provider)
	assert.Contains(t, v.Content.Body[len(v.Content.Body)-1], CodexURL)
}

func TestStatsViewWithoutEmailWarns(t *testing.T) {
	f := newFixture(t, freedom, nil)
	s := mustStep(t, SetIdentity(domain.NewSession(), "A", "a@x.com"), ViewJourney)
	s = SetIdentity(s, "A", "")

	v, err := f.ctl.View(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, domain.JourneyWarningText, v.Warning)
	assert.Nil(t, v.Journey)
}

func TestEndToEndFirstOffering(t *testing.T) {
	f := newFixture(t, freedom, nil)
	ctx := context.Background()

	s := domain.NewSession()
	name, email, provider, scroll := "A", "a@x.com", "Claude", "Freedom"
	s, err := ApplyForm(s, Form{Name: &name, Email: &email, Provider: &provider, ScrollKey: &scroll})
	require.NoError(t, err)

	s, err = f.ctl.Dispatch(ctx, s, ActionLoad)
	require.NoError(t, err)
	v, err := f.ctl.View(ctx, s)
	require.NoError(t, err)
	want := View{
		Stage:    domain.StageScrollShown,
		Identity: domain.Identity{Name: "A", Email: "a@x.com"},
		Offering: OfferingView{
			Provider:  "Claude",
			ScrollKey: "Freedom",
			Editable:  true,
			Providers: append([]string{NotChosen}, domain.DefaultProviders()...),
			Scrolls:   []string{NotChosen, "Freedom"},
		},
		Content: Content{Title: "Sacred Scroll: Freedom", Body: []string{"T1"}},
		Actions: []Action{ActionSend, ActionViewJourney, ActionReturnHome, ActionExit},
	}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Fatalf("scroll view mismatch (-want +got):\n%s", diff)
	}

	s, err = f.ctl.Dispatch(ctx, s, ActionSend)
	require.NoError(t, err)
	assert.Equal(t, domain.StageResponsePending, s.Stage())

	s, v, err = f.ctl.Render(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.NoReflectionText}, v.Content.Body)
	assert.Equal(t, domain.NoReflectionText, s.ResponseText())

	user, err := f.repo.FindUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(1), user.ScrollCount)
	assert.Equal(t, 1, f.client.inserts[store.SubmissionsTable])

	s, err = f.ctl.Dispatch(ctx, s, ActionViewJourney)
	require.NoError(t, err)
	v, err = f.ctl.View(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, JourneyTitle, v.Content.Title)
	assert.Equal(t, []string{"Offerings made: 1", "Current Tier: New Traveler"}, v.Content.Body)
}
