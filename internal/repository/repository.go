// Package repository declares the storage contracts. Implementations live in
// the sqlite and mongo subpackages; services depend only on these interfaces.
package repository

import (
	"context"
	"time"

	"github.com/sakif/aurashift/internal/model"
)

// Page size limits for activity listings.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ActivityQuery selects a user's activities.
//
// From and To are inclusive bounds on CreatedAt; a zero value leaves that
// side open. Type "" matches every type. Limit 0 means no limit.
type ActivityQuery struct {
	UserID    string
	Type      model.ActivityType
	From      time.Time
	To        time.Time
	Ascending bool // oldest first; default is newest first
	Limit     int
	Offset    int
}

type ActivityRepository interface {
	Create(ctx context.Context, activity *model.Activity) error
	// GetByID returns apperror.NotFound when the activity does not exist or
	// belongs to a different user.
	GetByID(ctx context.Context, userID, id string) (*model.Activity, error)
	Find(ctx context.Context, q ActivityQuery) ([]model.Activity, error)
	// Count ignores Limit, Offset and ordering.
	Count(ctx context.Context, q ActivityQuery) (int, error)
	// Update persists Type, Points and Metadata of an owned activity.
	Update(ctx context.Context, activity *model.Activity) error
	Delete(ctx context.Context, userID, id string) error
}

type UserRepository interface {
	// Create returns apperror.ErrConflict when the email is taken.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// Upsert inserts or refreshes a user keyed by GitHubID.
	Upsert(ctx context.Context, user *model.User) error
	// Update merges the non-nil fields of patch and returns apperror.NotFound
	// when the user does not exist.
	Update(ctx context.Context, id string, patch model.UserPatch) error
}
