package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/sakif/aurashift/internal/apperror"
	"github.com/sakif/aurashift/internal/auth"
	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/repository"
)

// fakeUserRepo is an in-memory repository.UserRepository. Using a fake (not
// a mock framework) keeps tests easy to read.
type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int
	// set to simulate a database failure
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) newID() string {
	id := fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	return id
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range f.users {
		if user.Email != "" && u.Email == user.Email {
			return apperror.Conflict("User with this email already exists")
		}
	}
	user.ID = f.newID()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.GitHubID == user.GitHubID {
			u.DisplayName = user.DisplayName
			u.AvatarURL = user.AvatarURL
			*user = *u
			return nil
		}
	}
	user.ID = f.newID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, id string, patch model.UserPatch) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	patch.Apply(u)
	return nil
}

// fakeActivityRepo is an in-memory repository.ActivityRepository with the
// same filter semantics as the real stores.
type fakeActivityRepo struct {
	activities []model.Activity
	nextID     int
	findErr    error
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{nextID: 1}
}

func (f *fakeActivityRepo) Create(_ context.Context, a *model.Activity) error {
	a.ID = fmt.Sprintf("act-%d", f.nextID)
	f.nextID++
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.UpdatedAt = a.CreatedAt
	f.activities = append(f.activities, *a)
	return nil
}

// seed inserts an activity of type t at the given time.
func (f *fakeActivityRepo) seed(t *testing.T, userID string, typ model.ActivityType, at time.Time) model.Activity {
	t.Helper()
	a, err := model.NewActivity(userID, typ, nil)
	if err != nil {
		t.Fatalf("NewActivity: %v", err)
	}
	a.CreatedAt = at
	if err := f.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return *a
}

func (f *fakeActivityRepo) GetByID(_ context.Context, userID, id string) (*model.Activity, error) {
	for _, a := range f.activities {
		if a.ID == id && a.UserID == userID {
			copied := a
			copied.Metadata = model.Metadata{}.Merge(a.Metadata)
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("activity", id)
}

func (f *fakeActivityRepo) match(q repository.ActivityQuery) []model.Activity {
	var out []model.Activity
	for _, a := range f.activities {
		if a.UserID != q.UserID {
			continue
		}
		if q.Type != "" && a.Type != q.Type {
			continue
		}
		if !q.From.IsZero() && a.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && a.CreatedAt.After(q.To) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (f *fakeActivityRepo) Find(_ context.Context, q repository.ActivityQuery) ([]model.Activity, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := f.match(q)
	sort.SliceStable(out, func(i, j int) bool {
		if q.Ascending {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeActivityRepo) Count(_ context.Context, q repository.ActivityQuery) (int, error) {
	return len(f.match(q)), nil
}

func (f *fakeActivityRepo) Update(_ context.Context, a *model.Activity) error {
	for i := range f.activities {
		if f.activities[i].ID == a.ID && f.activities[i].UserID == a.UserID {
			f.activities[i].Type = a.Type
			f.activities[i].Points = a.Points
			f.activities[i].Metadata = a.Metadata
			return nil
		}
	}
	return apperror.NotFound("activity", a.ID)
}

func (f *fakeActivityRepo) Delete(_ context.Context, userID, id string) error {
	i := slices.IndexFunc(f.activities, func(a model.Activity) bool {
		return a.ID == id && a.UserID == userID
	})
	if i < 0 {
		return apperror.NotFound("activity", id)
	}
	f.activities = slices.Delete(f.activities, i, i+1)
	return nil
}

var errDatabase = errors.New("database is locked")

// testNow is the fixed clock every service in a test shares.
var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// services bundles the domain services over one pair of fakes.
type services struct {
	users      *fakeUserRepo
	activities *fakeActivityRepo
	progress   *ProgressService
	activity   *ActivityService
	onboarding *OnboardingService
}

func newTestServices(t *testing.T) *services {
	t.Helper()
	users := newFakeUserRepo()
	activities := newFakeActivityRepo()
	logger := testLogger()

	progress := NewProgressService(activities, users, logger)
	progress.now = func() time.Time { return testNow }

	activity := NewActivityService(activities, users, progress, logger)
	activity.now = func() time.Time { return testNow }

	onboarding := NewOnboardingService(users, progress, logger)
	onboarding.now = func() time.Time { return testNow }

	return &services{
		users:      users,
		activities: activities,
		progress:   progress,
		activity:   activity,
		onboarding: onboarding,
	}
}

// addUser stores a user and returns its ID. profile may be nil.
func (s *services) addUser(t *testing.T, createdAt time.Time, profile *model.SmokingProfile) string {
	t.Helper()
	u := &model.User{
		DisplayName:    "Test User",
		Email:          fmt.Sprintf("user%d@example.com", s.users.nextID),
		SmokingHistory: profile,
		CreatedAt:      createdAt,
	}
	if err := s.users.Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return u.ID
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	// Cost 4 is the bcrypt minimum and keeps the tests fast.
	ps, err := auth.NewPasswordServiceWithCost(4)
	if err != nil {
		t.Fatalf("NewPasswordServiceWithCost: %v", err)
	}
	return NewAuthService(repo, ts, ps, testLogger())
}

func ptr[T any](v T) *T { return &v }
