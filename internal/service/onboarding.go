package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sakif/aurashift/internal/apperror"
	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/repository"
)

// OnboardingService records the smoking profile that savings are computed
// from, and starts the smoke-free streak.
type OnboardingService struct {
	users    repository.UserRepository
	progress *ProgressService
	logger   *slog.Logger
	now      func() time.Time
}

func NewOnboardingService(users repository.UserRepository, progress *ProgressService, logger *slog.Logger) *OnboardingService {
	return &OnboardingService{
		users:    users,
		progress: progress,
		logger:   logger,
		now:      time.Now,
	}
}

// ProfileInput is the smoking profile as the client sends it. Cost comes in
// exactly one of two units; only the per-cigarette cost is stored.
type ProfileInput struct {
	YearsSmoked      *float64
	CigarettesPerDay *float64
	CostPerCigarette *float64
	CostPerPack      *float64
	Motivations      []string
}

type OnboardingStatus struct {
	OnboardingCompleted bool                  `json:"onboardingCompleted"`
	SmokingHistory      *model.SmokingProfile `json:"smokingHistory"`
	StreakStartTime     *time.Time            `json:"streakStartTime"`
}

// Complete stores a full profile and starts the streak. It fails if the user
// has already been through onboarding.
func (s *OnboardingService) Complete(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	profile, err := mergeProfile(nil, in)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/onboarding: loading user: %w", err)
	}
	if user.OnboardingCompleted {
		return nil, apperror.ValidationFailed("", "Onboarding already completed")
	}

	completed := true
	start := s.now()
	patch := model.UserPatch{
		SmokingHistory:      profile,
		OnboardingCompleted: &completed,
		StreakStartTime:     &start,
	}
	if err := s.users.Update(ctx, userID, patch); err != nil {
		return nil, fmt.Errorf("service/onboarding: saving profile: %w", err)
	}

	if err := s.recompute(ctx, userID); err != nil {
		return nil, err
	}

	s.logger.Info("onboarding completed",
		slog.String("userID", userID),
		slog.Int("cigarettesPerDay", profile.CigarettesPerDay),
	)
	return s.reload(ctx, userID)
}

// Update changes only the supplied profile fields. A user who skipped
// Complete is onboarded by their first successful Update.
func (s *OnboardingService) Update(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/onboarding: loading user: %w", err)
	}

	profile, err := mergeProfile(user.SmokingHistory, in)
	if err != nil {
		return nil, err
	}

	patch := model.UserPatch{SmokingHistory: profile}
	if !user.OnboardingCompleted {
		completed := true
		patch.OnboardingCompleted = &completed
	}
	if user.StreakStartTime == nil {
		start := s.now()
		patch.StreakStartTime = &start
	}
	if err := s.users.Update(ctx, userID, patch); err != nil {
		return nil, fmt.Errorf("service/onboarding: saving profile: %w", err)
	}

	if err := s.progress.RecalculateAvoidanceAndSavings(ctx, userID, ""); err != nil {
		return nil, fmt.Errorf("service/onboarding: %w", err)
	}

	s.logger.Info("smoking profile updated", slog.String("userID", userID))
	return s.reload(ctx, userID)
}

func (s *OnboardingService) Status(ctx context.Context, userID string) (*OnboardingStatus, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/onboarding: loading user: %w", err)
	}
	return &OnboardingStatus{
		OnboardingCompleted: user.OnboardingCompleted,
		SmokingHistory:      user.SmokingHistory,
		StreakStartTime:     user.StreakStartTime,
	}, nil
}

func (s *OnboardingService) recompute(ctx context.Context, userID string) error {
	if _, err := s.progress.RecalculateScore(ctx, userID); err != nil {
		return fmt.Errorf("service/onboarding: %w", err)
	}
	if err := s.progress.RecalculateAvoidanceAndSavings(ctx, userID, ""); err != nil {
		return fmt.Errorf("service/onboarding: %w", err)
	}
	return nil
}

func (s *OnboardingService) reload(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/onboarding: reloading user: %w", err)
	}
	return user, nil
}

// mergeProfile applies in on top of base (nil for a fresh profile) and
// checks the result is complete and in range.
func mergeProfile(base *model.SmokingProfile, in ProfileInput) (*model.SmokingProfile, error) {
	var p model.SmokingProfile
	if base != nil {
		p = *base
	}

	if in.YearsSmoked != nil {
		if *in.YearsSmoked < 0 || math.IsNaN(*in.YearsSmoked) {
			return nil, apperror.ValidationFailed("yearsSmoked", "Years smoked must be a positive number")
		}
		p.YearsSmoked = *in.YearsSmoked
	} else if base == nil {
		return nil, apperror.ValidationFailed("yearsSmoked", "yearsSmoked is required")
	}

	if in.CigarettesPerDay != nil {
		n := *in.CigarettesPerDay
		if n < 0 || n != math.Trunc(n) {
			return nil, apperror.ValidationFailed("cigarettesPerDay", "Cigarettes per day must be a positive whole number")
		}
		// Also keeps int(n) and the days*perDay products in range.
		if n > maxCigarettesPerDay {
			return nil, apperror.ValidationFailed("cigarettesPerDay", fmt.Sprintf("Cigarettes per day must be %d or fewer", maxCigarettesPerDay))
		}
		p.CigarettesPerDay = int(n)
	} else if base == nil {
		return nil, apperror.ValidationFailed("cigarettesPerDay", "cigarettesPerDay is required")
	}

	switch {
	case in.CostPerCigarette != nil && in.CostPerPack != nil:
		return nil, apperror.ValidationFailed("costPerCigarette", "provide either costPerCigarette or costPerPack, not both")
	case in.CostPerCigarette != nil:
		if *in.CostPerCigarette < 0 || math.IsNaN(*in.CostPerCigarette) {
			return nil, apperror.ValidationFailed("costPerCigarette", "Cost per cigarette must be a positive number")
		}
		p.CostPerCigarette = *in.CostPerCigarette
	case in.CostPerPack != nil:
		if *in.CostPerPack < 0 || math.IsNaN(*in.CostPerPack) {
			return nil, apperror.ValidationFailed("costPerPack", "Cost per pack must be a positive number")
		}
		p.CostPerCigarette = model.CostPerCigaretteFromPack(*in.CostPerPack)
	case base == nil:
		return nil, apperror.ValidationFailed("costPerCigarette", "one of costPerCigarette or costPerPack is required")
	}

	if in.Motivations != nil {
		if len(in.Motivations) == 0 {
			return nil, apperror.ValidationFailed("motivations", "At least one motivation is required")
		}
		for _, m := range in.Motivations {
			if !model.ValidMotivation(m) {
				return nil, apperror.ValidationFailed("motivations", fmt.Sprintf("invalid motivation %q", m))
			}
		}
		p.Motivations = append([]string(nil), in.Motivations...)
	} else if base == nil {
		return nil, apperror.ValidationFailed("motivations", "At least one motivation is required")
	}

	return &p, nil
}
