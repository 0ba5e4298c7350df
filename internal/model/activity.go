// Package model defines the data structures used throughout the application.
package model

import (
	"fmt"
	"time"
)

// ActivityType is the closed set of things a user can log.
//
// The set is closed on purpose: scoring, chart bucketing and validation all
// switch over it. Adding a member means adding a constant, a case in Points
// and an entry in AllActivityTypes; TestAllActivityTypesHavePoints fails if
// the last two drift apart.
type ActivityType string

const (
	ActivityCigaretteConsumed ActivityType = "cigarette_consumed"
	ActivityGymWorkout        ActivityType = "gym_workout"
	ActivityHealthyMeal       ActivityType = "healthy_meal"
	ActivitySkinCare          ActivityType = "skin_care"
	ActivitySocialEvent       ActivityType = "social_event"
)

// AllActivityTypes lists every member of the enumeration in display order.
var AllActivityTypes = []ActivityType{
	ActivityCigaretteConsumed,
	ActivityGymWorkout,
	ActivityHealthyMeal,
	ActivitySkinCare,
	ActivitySocialEvent,
}

// Points returns the fixed aura point value of the type.
// ok is false only for values outside the enumeration.
func (t ActivityType) Points() (points int, ok bool) {
	switch t {
	case ActivityCigaretteConsumed:
		return -10, true
	case ActivityGymWorkout:
		return 5, true
	case ActivityHealthyMeal:
		return 3, true
	case ActivitySkinCare:
		return 2, true
	case ActivitySocialEvent:
		return 1, true
	}
	return 0, false
}

// IsNegative reports whether logging the activity costs aura points.
func (t ActivityType) IsNegative() bool {
	p, _ := t.Points()
	return p < 0
}

func (t ActivityType) Valid() bool {
	_, ok := t.Points()
	return ok
}

// ParseActivityType converts raw input into an ActivityType.
func ParseActivityType(s string) (ActivityType, error) {
	t := ActivityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid activity type %q", s)
	}
	return t, nil
}

// Metadata is the free-form bag attached to an activity. Well-known keys are
// note, location, duration and intensity; anything else is stored as-is.
type Metadata map[string]any

// Intensity values accepted for the "intensity" metadata key.
var Intensities = []string{"low", "medium", "high"}

// Merge returns a copy of m with every key of patch applied on top.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := make(Metadata, len(m)+len(patch))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Activity is a single logged event. Points always mirror Type; use
// NewActivity or SetType instead of assigning either field directly.
type Activity struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Type      ActivityType `json:"type"`
	Points    int          `json:"points"`
	Metadata  Metadata     `json:"metadata,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// NewActivity builds an activity with its points derived from t.
func NewActivity(userID string, t ActivityType, md Metadata) (*Activity, error) {
	a := &Activity{UserID: userID, Metadata: md}
	if err := a.SetType(t); err != nil {
		return nil, err
	}
	return a, nil
}

// SetType changes the type and re-derives the points.
func (a *Activity) SetType(t ActivityType) error {
	p, ok := t.Points()
	if !ok {
		return fmt.Errorf("invalid activity type %q", t)
	}
	a.Type = t
	a.Points = p
	return nil
}
