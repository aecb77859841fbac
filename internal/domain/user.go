// Package domain contains core domain types for the WhisperBridge application.
package domain

import "fmt"

// UserRecord is a traveler as persisted in the users collection.
type UserRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	ScrollCount int64  `json:"scroll_count"`
}

// Tier classifies a traveler by cumulative offerings.
type Tier string

const (
	TierNewTraveler  Tier = "New Traveler"
	TierJourneyman   Tier = "Journeyman"
	TierSacredKeeper Tier = "Sacred Keeper"
)

// Tier thresholds.
const (
	journeymanThreshold   = 10
	sacredKeeperThreshold = 30
)

// TierFor derives the tier for a given offering count.
func TierFor(count int64) Tier {
	switch {
	case count < journeymanThreshold:
		return TierNewTraveler
	case count < sacredKeeperThreshold:
		return TierJourneyman
	default:
		return TierSacredKeeper
	}
}

// Journey is the stats projection for one email.
// Found distinguishes "no record" from a record with zero offerings.
type Journey struct {
	Email     string `json:"email"`
	Found     bool   `json:"found"`
	Offerings int64  `json:"offerings"`
	Tier      Tier   `json:"tier,omitempty"`
}

// JourneyFor projects a user record (nil when absent) into a Journey.
func JourneyFor(email string, user *UserRecord) Journey {
	if user == nil {
		return Journey{Email: email}
	}
	return Journey{
		Email:     email,
		Found:     true,
		Offerings: user.ScrollCount,
		Tier:      TierFor(user.ScrollCount),
	}
}

// HasOfferings reports whether the journey has anything to show.
func (j Journey) HasOfferings() bool {
	return j.Found && j.Offerings > 0
}

// Lines returns the user-facing stats lines.
func (j Journey) Lines() []string {
	if !j.HasOfferings() {
		return []string{NoOfferingsText}
	}
	return []string{
		fmt.Sprintf("Offerings made: %d", j.Offerings),
		fmt.Sprintf("Current Tier: %s", j.Tier),
	}
}
