package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/observability"
	"github.com/sakif/aurashift/internal/repository"
)

// ActivityService handles logging, listing, editing and deleting activities.
// Every mutation is followed by a full score and savings recompute, and the
// new score is returned with the result.
type ActivityService struct {
	activities repository.ActivityRepository
	users      repository.UserRepository
	progress   *ProgressService
	logger     *slog.Logger
	now        func() time.Time
}

func NewActivityService(
	activities repository.ActivityRepository,
	users repository.UserRepository,
	progress *ProgressService,
	logger *slog.Logger,
) *ActivityService {
	return &ActivityService{
		activities: activities,
		users:      users,
		progress:   progress,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateActivityInput is the client payload. Any points the client sends are
// not part of it: points come from Type alone.
type CreateActivityInput struct {
	Type     string
	Metadata model.Metadata
}

// UpdateActivityInput leaves nil fields unchanged. Metadata is merged key by
// key into what is stored.
type UpdateActivityInput struct {
	Type     *string
	Metadata model.Metadata
}

// ListActivitiesInput filters the caller's activities. Dates are RFC 3339 or
// YYYY-MM-DD, both bounds inclusive.
type ListActivitiesInput struct {
	Page      int
	Limit     int
	Type      string
	StartDate string
	EndDate   string
}

type ActivityResult struct {
	Activity     *model.Activity `json:"activity"`
	NewAuraScore int             `json:"newAuraScore"`
}

type DeleteResult struct {
	DeletedActivityID string `json:"deletedActivityId"`
	NewAuraScore      int    `json:"newAuraScore"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type ActivityPage struct {
	Activities []model.Activity `json:"activities"`
	Pagination Pagination       `json:"pagination"`
}

func (s *ActivityService) Create(ctx context.Context, userID string, in CreateActivityInput) (*ActivityResult, error) {
	t, err := parseActivityType(in.Type)
	if err != nil {
		return nil, err
	}
	md := in.Metadata
	if md == nil {
		md = model.Metadata{}
	}
	if err := validateMetadata(md); err != nil {
		return nil, err
	}

	// Surface a deleted account as 404 rather than a foreign key failure.
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("service/activity: loading user: %w", err)
	}

	activity, err := model.NewActivity(userID, t, md)
	if err != nil {
		return nil, fmt.Errorf("service/activity: %w", err)
	}
	activity.CreatedAt = s.now()

	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("service/activity: creating activity: %w", err)
	}

	if t == model.ActivityCigaretteConsumed {
		smoked := activity.CreatedAt
		if err := s.users.Update(ctx, userID, model.UserPatch{LastSmoked: &smoked}); err != nil {
			return nil, fmt.Errorf("service/activity: recording last smoked: %w", err)
		}
	}

	score, err := s.afterMutation(ctx, userID, t)
	if err != nil {
		return nil, err
	}

	observability.RecordActivityLogged(t)
	s.logger.Info("activity logged",
		slog.String("userID", userID),
		slog.String("activityID", activity.ID),
		slog.String("type", string(t)),
		slog.Int("points", activity.Points),
		slog.Int("auraScore", score),
	)

	return &ActivityResult{Activity: activity, NewAuraScore: score}, nil
}

// List returns one page of the caller's activities, newest first.
func (s *ActivityService) List(ctx context.Context, userID string, in ListActivitiesInput) (*ActivityPage, error) {
	page := max(1, in.Page)
	limit := in.Limit
	if limit <= 0 {
		limit = repository.DefaultLimit
	}
	limit = min(limit, repository.MaxLimit)

	q := repository.ActivityQuery{
		UserID: userID,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if in.Type != "" {
		t, err := parseActivityType(in.Type)
		if err != nil {
			return nil, err
		}
		q.Type = t
	}

	var err error
	if q.From, err = parseDateBound("startDate", in.StartDate, false); err != nil {
		return nil, err
	}
	if q.To, err = parseDateBound("endDate", in.EndDate, true); err != nil {
		return nil, err
	}

	activities, err := s.activities.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service/activity: listing activities: %w", err)
	}
	total, err := s.activities.Count(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service/activity: counting activities: %w", err)
	}

	if activities == nil {
		activities = []model.Activity{}
	}

	return &ActivityPage{
		Activities: activities,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

func (s *ActivityService) Update(ctx context.Context, userID, id string, in UpdateActivityInput) (*ActivityResult, error) {
	var newType model.ActivityType
	if in.Type != nil {
		t, err := parseActivityType(*in.Type)
		if err != nil {
			return nil, err
		}
		newType = t
	}

	activity, err := s.activities.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("service/activity: loading activity: %w", err)
	}

	if newType != "" {
		if err := activity.SetType(newType); err != nil {
			return nil, fmt.Errorf("service/activity: %w", err)
		}
	}
	if in.Metadata != nil {
		merged := activity.Metadata.Merge(in.Metadata)
		if err := validateMetadata(merged); err != nil {
			return nil, err
		}
		activity.Metadata = merged
	}

	if err := s.activities.Update(ctx, activity); err != nil {
		return nil, fmt.Errorf("service/activity: updating activity: %w", err)
	}

	score, err := s.afterMutation(ctx, userID, activity.Type)
	if err != nil {
		return nil, err
	}

	s.logger.Info("activity updated",
		slog.String("userID", userID),
		slog.String("activityID", id),
		slog.String("type", string(activity.Type)),
		slog.Int("auraScore", score),
	)

	return &ActivityResult{Activity: activity, NewAuraScore: score}, nil
}

func (s *ActivityService) Delete(ctx context.Context, userID, id string) (*DeleteResult, error) {
	activity, err := s.activities.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("service/activity: loading activity: %w", err)
	}

	if err := s.activities.Delete(ctx, userID, id); err != nil {
		return nil, fmt.Errorf("service/activity: deleting activity: %w", err)
	}

	score, err := s.afterMutation(ctx, userID, activity.Type)
	if err != nil {
		return nil, err
	}

	s.logger.Info("activity deleted",
		slog.String("userID", userID),
		slog.String("activityID", id),
		slog.Int("auraScore", score),
	)

	return &DeleteResult{DeletedActivityID: id, NewAuraScore: score}, nil
}

// afterMutation brings the derived counters back in line with the history.
func (s *ActivityService) afterMutation(ctx context.Context, userID string, trigger model.ActivityType) (int, error) {
	score, err := s.progress.RecalculateScore(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("service/activity: %w", err)
	}
	if err := s.progress.RecalculateAvoidanceAndSavings(ctx, userID, trigger); err != nil {
		return 0, fmt.Errorf("service/activity: %w", err)
	}
	return score, nil
}
