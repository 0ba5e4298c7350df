package model

import "time"

// User is the account plus the progress counters the scoring engine keeps.
//
// AuraScore, CigarettesAvoided and TotalMoneySaved are derived values. They
// are only ever written by a full recompute over the user's activity history,
// never adjusted in place.
type User struct {
	ID                  string          `json:"id"`
	DisplayName         string          `json:"displayName"`
	Email               string          `json:"email"`
	PasswordHash        string          `json:"-"`
	GitHubID            int64           `json:"githubId,omitempty"` // zero for password accounts
	AvatarURL           string          `json:"avatarUrl,omitempty"`
	SmokingHistory      *SmokingProfile `json:"smokingHistory,omitempty"`
	OnboardingCompleted bool            `json:"onboardingCompleted"`
	AuraScore           int             `json:"auraScore"`
	CigarettesAvoided   int             `json:"cigarettesAvoided"`
	TotalMoneySaved     float64         `json:"totalMoneySaved"`
	StreakStartTime     *time.Time      `json:"streakStartTime,omitempty"`
	LastSmoked          *time.Time      `json:"lastSmoked,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	AuraScore           *int
	CigarettesAvoided   *int
	TotalMoneySaved     *float64
	SmokingHistory      *SmokingProfile
	OnboardingCompleted *bool
	StreakStartTime     *time.Time
	LastSmoked          *time.Time
}

// Empty reports whether the patch would change nothing.
func (p UserPatch) Empty() bool {
	return p.AuraScore == nil && p.CigarettesAvoided == nil && p.TotalMoneySaved == nil &&
		p.SmokingHistory == nil && p.OnboardingCompleted == nil &&
		p.StreakStartTime == nil && p.LastSmoked == nil
}

// Apply copies the non-nil fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.AuraScore != nil {
		u.AuraScore = *p.AuraScore
	}
	if p.CigarettesAvoided != nil {
		u.CigarettesAvoided = *p.CigarettesAvoided
	}
	if p.TotalMoneySaved != nil {
		u.TotalMoneySaved = *p.TotalMoneySaved
	}
	if p.SmokingHistory != nil {
		sh := *p.SmokingHistory
		u.SmokingHistory = &sh
	}
	if p.OnboardingCompleted != nil {
		u.OnboardingCompleted = *p.OnboardingCompleted
	}
	if p.StreakStartTime != nil {
		t := *p.StreakStartTime
		u.StreakStartTime = &t
	}
	if p.LastSmoked != nil {
		t := *p.LastSmoked
		u.LastSmoked = &t
	}
}
