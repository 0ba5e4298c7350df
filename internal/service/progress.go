// Package service holds the business rules between the HTTP handlers and the
// stores:
//
//	handler (HTTP) → service (rules, recompute) → repository (sqlite | mongo)
//	                         ↘ scoring (pure math)
//
// Services never touch http.Request. Errors come back as apperror values
// (possibly wrapped) so the handler layer can map them to status codes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/observability"
	"github.com/sakif/aurashift/internal/repository"
	"github.com/sakif/aurashift/internal/scoring"
)

// ProgressService owns the derived counters on the user record: aura score,
// cigarettes avoided and money saved. Every value is a full recompute over
// the activity history, so running it twice gives the same result.
type ProgressService struct {
	activities repository.ActivityRepository
	users      repository.UserRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewProgressService(
	activities repository.ActivityRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *ProgressService {
	return &ProgressService{
		activities: activities,
		users:      users,
		logger:     logger,
		now:        time.Now,
	}
}

// Stats is the derived part of the dashboard snapshot.
type Stats struct {
	SmokeFreeTime     int     `json:"smokeFreeTime"`
	Level             int     `json:"level"`
	MoneySaved        float64 `json:"moneySaved"`
	CigarettesAvoided int     `json:"cigarettesAvoided"`
	DaysSmokeFree     int     `json:"daysSmokeFree"`
}

type Dashboard struct {
	User      *model.User `json:"user"`
	AuraScore int         `json:"auraScore"`
	Stats     Stats       `json:"stats"`
}

// RecalculateScore recomputes the user's aura score from every activity they
// have ever logged and persists it.
func (s *ProgressService) RecalculateScore(ctx context.Context, userID string) (int, error) {
	all, err := s.activities.Find(ctx, repository.ActivityQuery{UserID: userID})
	if err != nil {
		return 0, fmt.Errorf("service/progress: loading activities: %w", err)
	}

	score := scoring.AuraScore(all)
	if err := s.users.Update(ctx, userID, model.UserPatch{AuraScore: &score}); err != nil {
		return 0, fmt.Errorf("service/progress: saving aura score: %w", err)
	}

	observability.RecordScoreRecalculation()
	s.logger.Debug("aura score recalculated",
		slog.String("userID", userID),
		slog.Int("activities", len(all)),
		slog.Int("auraScore", score),
	)
	return score, nil
}

// RecalculateAvoidanceAndSavings refreshes cigarettesAvoided and
// totalMoneySaved. Users without a smoking profile are left alone. trigger is
// the activity type that caused the recompute; it only shows up in logs.
func (s *ProgressService) RecalculateAvoidanceAndSavings(ctx context.Context, userID string, trigger model.ActivityType) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/progress: loading user: %w", err)
	}
	if user.SmokingHistory == nil {
		return nil
	}

	now := s.now()
	start := user.CreatedAt
	if user.StreakStartTime != nil {
		start = *user.StreakStartTime
	}

	consumed, err := s.activities.Count(ctx, repository.ActivityQuery{
		UserID: userID,
		Type:   model.ActivityCigaretteConsumed,
		From:   start,
	})
	if err != nil {
		return fmt.Errorf("service/progress: counting cigarettes: %w", err)
	}

	savings := scoring.SinceStart(*user.SmokingHistory, start, now, consumed)
	patch := model.UserPatch{
		CigarettesAvoided: &savings.CigarettesAvoided,
		TotalMoneySaved:   &savings.MoneySaved,
	}
	if err := s.users.Update(ctx, userID, patch); err != nil {
		return fmt.Errorf("service/progress: saving savings: %w", err)
	}

	s.logger.Debug("savings recalculated",
		slog.String("userID", userID),
		slog.String("trigger", string(trigger)),
		slog.Int("consumed", consumed),
		slog.Int("cigarettesAvoided", savings.CigarettesAvoided),
		slog.Float64("moneySaved", savings.MoneySaved),
	)
	return nil
}

// DashboardStats reads the stored counters and derives level and streak
// length. It writes nothing.
func (s *ProgressService) DashboardStats(ctx context.Context, userID string) (*Dashboard, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/progress: loading user: %w", err)
	}

	days := 0
	if user.StreakStartTime != nil {
		days = scoring.WholeDays(*user.StreakStartTime, s.now())
	}

	return &Dashboard{
		User:      user,
		AuraScore: user.AuraScore,
		Stats: Stats{
			SmokeFreeTime:     days,
			Level:             scoring.Level(user.AuraScore),
			MoneySaved:        user.TotalMoneySaved,
			CigarettesAvoided: user.CigarettesAvoided,
			DaysSmokeFree:     days,
		},
	}, nil
}

// ChartSeries builds the bucketed chart for one of the supported ranges.
// The full history up to now is loaded because the first point carries the
// score accumulated before the window.
func (s *ProgressService) ChartSeries(ctx context.Context, userID, timeRange string) (*scoring.Chart, error) {
	r, err := parseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/progress: loading user: %w", err)
	}

	now := s.now()
	history, err := s.activities.Find(ctx, repository.ActivityQuery{
		UserID:    userID,
		To:        now,
		Ascending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("service/progress: loading activities: %w", err)
	}

	chart, err := scoring.BuildChart(history, user.SmokingHistory, r, now)
	if err != nil {
		return nil, fmt.Errorf("service/progress: building chart: %w", err)
	}

	observability.RecordChartRequest(string(r))
	return &chart, nil
}
