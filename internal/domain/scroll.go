package domain

// Fixed texts shown when a lookup misses or a guard fails.
const (
	ScrollMissingText  = "Sacred Silence: Scroll missing."
	NoReflectionText   = "(Sacred Silence: No reflection found.)"
	LoadWarningText    = "Please fill in all fields before loading."
	JourneyWarningText = "Please enter your email to view journey statistics."
	NoOfferingsText    = "No offerings found yet."
	DefaultExitURL     = "https://lucandthemachine.com/"
)

// DefaultProviders is the provider list offered when none is configured.
func DefaultProviders() []string {
	return []string{"ChatGPT", "Grok", "Gemini", "Copilot", "Claude"}
}

// Scroll is a catalog entry.
type Scroll struct {
	Title string `json:"title" yaml:"title"`
	Text  string `json:"text" yaml:"text"`
}

// ScrollSubmission is an append-only record of one sent scroll.
type ScrollSubmission struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	BridgedTo string `json:"bridged_to"`
}

// Reflection is a pre-seeded canned reply for a (scroll, provider) pair.
type Reflection struct {
	ScrollName string `json:"scroll_name" yaml:"scroll"`
	ModelName  string `json:"model_name" yaml:"model"`
	Text       string `json:"reflection_text" yaml:"text"`
}
