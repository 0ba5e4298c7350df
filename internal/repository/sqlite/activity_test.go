package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/aurashift/internal/apperror"
	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/repository"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func createTestActivity(t *testing.T, a *ActivityDB, userID string, typ model.ActivityType, at time.Time) *model.Activity {
	t.Helper()
	activity, err := model.NewActivity(userID, typ, nil)
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	activity.CreatedAt = at
	if err := a.Create(context.Background(), activity); err != nil {
		t.Fatalf("failed to create test activity: %v", err)
	}
	return activity
}

func newActivityFixture(t *testing.T) (*ActivityDB, string, string) {
	t.Helper()
	db := newTestDB(t)
	owner := createTestUser(t, db.Users(), "owner@example.com")
	other := createTestUser(t, db.Users(), "other@example.com")
	return db.Activities(), owner.ID, other.ID
}

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestActivityCreate_RoundTrip(t *testing.T) {
	a, owner, _ := newActivityFixture(t)

	created, err := model.NewActivity(owner, model.ActivityGymWorkout, model.Metadata{"note": "legs", "duration": 45})
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	created.CreatedAt = baseTime.Add(123456789 * time.Nanosecond)
	if err := a.Create(context.Background(), created); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := a.GetByID(context.Background(), owner, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if found.Type != model.ActivityGymWorkout || found.Points != 5 {
		t.Errorf("type/points = %s/%d, want gym_workout/5", found.Type, found.Points)
	}
	if !found.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", found.CreatedAt, created.CreatedAt)
	}
	if found.Metadata["note"] != "legs" || found.Metadata["duration"] != float64(45) {
		t.Errorf("Metadata = %v", found.Metadata)
	}
}

func TestActivityCreate_UnknownUser(t *testing.T) {
	a, _, _ := newActivityFixture(t)

	activity, _ := model.NewActivity("ghost", model.ActivitySkinCare, nil)
	if err := a.Create(context.Background(), activity); err == nil {
		t.Fatal("Create() should fail for a user that does not exist")
	}
}

func TestActivityGetByID_OtherOwnerIsNotFound(t *testing.T) {
	a, owner, other := newActivityFixture(t)
	created := createTestActivity(t, a, owner, model.ActivityHealthyMeal, baseTime)

	_, err := a.GetByID(context.Background(), other, created.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// FIND / COUNT TESTS
// =========================================================================

func TestActivityFind_FiltersAndOrder(t *testing.T) {
	a, owner, other := newActivityFixture(t)
	ctx := context.Background()

	createTestActivity(t, a, owner, model.ActivityCigaretteConsumed, baseTime)
	createTestActivity(t, a, owner, model.ActivityGymWorkout, baseTime.Add(time.Hour))
	createTestActivity(t, a, owner, model.ActivityCigaretteConsumed, baseTime.Add(2*time.Hour))
	createTestActivity(t, a, other, model.ActivityCigaretteConsumed, baseTime.Add(time.Hour))

	all, err := a.Find(ctx, repository.ActivityQuery{UserID: owner})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Find() returned %d activities, want 3", len(all))
	}
	if !all[0].CreatedAt.After(all[2].CreatedAt) {
		t.Error("Find() should default to newest first")
	}

	asc, _ := a.Find(ctx, repository.ActivityQuery{UserID: owner, Ascending: true})
	if !asc[0].CreatedAt.Equal(baseTime) {
		t.Error("Ascending should return oldest first")
	}

	cigs, _ := a.Find(ctx, repository.ActivityQuery{UserID: owner, Type: model.ActivityCigaretteConsumed})
	if len(cigs) != 2 {
		t.Errorf("type filter returned %d, want 2", len(cigs))
	}

	// From and To are both inclusive.
	window, _ := a.Find(ctx, repository.ActivityQuery{
		UserID: owner,
		From:   baseTime.Add(time.Hour),
		To:     baseTime.Add(2 * time.Hour),
	})
	if len(window) != 2 {
		t.Errorf("range filter returned %d, want 2", len(window))
	}
}

func TestActivityFind_Pagination(t *testing.T) {
	a, owner, _ := newActivityFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		createTestActivity(t, a, owner, model.ActivitySocialEvent, baseTime.Add(time.Duration(i)*time.Minute))
	}

	tests := []struct {
		name          string
		limit, offset int
		want          int
	}{
		{"first page", 2, 0, 2},
		{"second page", 2, 2, 2},
		{"last partial page", 2, 4, 1},
		{"offset without limit", 0, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Find(ctx, repository.ActivityQuery{UserID: owner, Limit: tt.limit, Offset: tt.offset})
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d items, want %d", len(got), tt.want)
			}
		})
	}
}

func TestActivityCount(t *testing.T) {
	a, owner, _ := newActivityFixture(t)
	ctx := context.Background()

	createTestActivity(t, a, owner, model.ActivityCigaretteConsumed, baseTime)
	createTestActivity(t, a, owner, model.ActivityCigaretteConsumed, baseTime.Add(48*time.Hour))
	createTestActivity(t, a, owner, model.ActivityHealthyMeal, baseTime.Add(48*time.Hour))

	n, err := a.Count(ctx, repository.ActivityQuery{
		UserID: owner,
		Type:   model.ActivityCigaretteConsumed,
		From:   baseTime.Add(24 * time.Hour),
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

// =========================================================================
// UPDATE / DELETE TESTS
// =========================================================================

func TestActivityUpdate(t *testing.T) {
	a, owner, _ := newActivityFixture(t)
	ctx := context.Background()
	activity := createTestActivity(t, a, owner, model.ActivityGymWorkout, baseTime)

	if err := activity.SetType(model.ActivityCigaretteConsumed); err != nil {
		t.Fatal(err)
	}
	activity.Metadata = model.Metadata{"note": "slipped"}
	if err := a.Update(ctx, activity); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, _ := a.GetByID(ctx, owner, activity.ID)
	if found.Points != -10 || found.Metadata["note"] != "slipped" {
		t.Errorf("after update: points=%d metadata=%v", found.Points, found.Metadata)
	}
	if !found.CreatedAt.Equal(baseTime) {
		t.Error("Update() must not change CreatedAt")
	}
}

func TestActivityUpdate_OtherOwnerIsNotFound(t *testing.T) {
	a, owner, other := newActivityFixture(t)
	activity := createTestActivity(t, a, owner, model.ActivityGymWorkout, baseTime)

	activity.UserID = other
	err := a.Update(context.Background(), activity)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestActivityDelete(t *testing.T) {
	a, owner, other := newActivityFixture(t)
	ctx := context.Background()
	activity := createTestActivity(t, a, owner, model.ActivityGymWorkout, baseTime)

	if err := a.Delete(ctx, other, activity.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() by another user error = %v, want ErrNotFound", err)
	}

	if err := a.Delete(ctx, owner, activity.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if err := a.Delete(ctx, owner, activity.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
