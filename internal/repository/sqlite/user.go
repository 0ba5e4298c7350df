package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/aurashift/internal/apperror"
	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

// UserDB stores accounts and progress counters in the users table.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, display_name, email, password_hash, github_id, avatar_url,
	smoking_history, onboarding_completed, aura_score, cigarettes_avoided,
	total_money_saved, streak_start_time, last_smoked, created_at, updated_at`

func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := normalize(time.Now())
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	profile, err := encodeProfile(user.SmokingHistory)
	if err != nil {
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	_, err = u.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.DisplayName,
		nullString(user.Email),
		user.PasswordHash,
		nullInt(user.GitHubID),
		user.AvatarURL,
		profile,
		user.OnboardingCompleted,
		user.AuraScore,
		user.CigarettesAvoided,
		user.TotalMoneySaved,
		nullMillis(user.StreakStartTime),
		nullMillis(user.LastSmoked),
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user with this email already exists")
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

func (u *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetUserByEmail expects an already lower-cased address.
func (u *UserDB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return user, nil
}

// Upsert creates the account on first GitHub sign-in and refreshes the
// profile fields afterwards. Progress fields are never touched here.
func (u *UserDB) Upsert(ctx context.Context, user *model.User) error {
	var existingID string
	err := u.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID == "" {
		return u.Create(ctx, user)
	}

	_, err = u.conn.ExecContext(ctx,
		`UPDATE users SET display_name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		user.DisplayName,
		user.AvatarURL,
		toMillis(normalize(time.Now())),
		existingID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", existingID, err)
	}

	stored, err := u.GetUserByID(ctx, existingID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// Update builds the SET list from the non-nil patch fields. updated_at is
// always bumped, so an empty patch still reports NotFound for a missing user.
func (u *UserDB) Update(ctx context.Context, id string, patch model.UserPatch) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.AuraScore != nil {
		set("aura_score", *patch.AuraScore)
	}
	if patch.CigarettesAvoided != nil {
		set("cigarettes_avoided", *patch.CigarettesAvoided)
	}
	if patch.TotalMoneySaved != nil {
		set("total_money_saved", *patch.TotalMoneySaved)
	}
	if patch.SmokingHistory != nil {
		profile, err := encodeProfile(patch.SmokingHistory)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", id, err)
		}
		set("smoking_history", profile)
	}
	if patch.OnboardingCompleted != nil {
		set("onboarding_completed", *patch.OnboardingCompleted)
	}
	if patch.StreakStartTime != nil {
		set("streak_start_time", toMillis(*patch.StreakStartTime))
	}
	if patch.LastSmoked != nil {
		set("last_smoked", toMillis(*patch.LastSmoked))
	}
	set("updated_at", toMillis(normalize(time.Now())))

	args = append(args, id)
	result, err := u.conn.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}

	return requireRow(result, "user", id)
}

func scanUser(s scanner) (*model.User, error) {
	var (
		user             model.User
		email, profile   sql.NullString
		githubID         sql.NullInt64
		streak, smoked   sql.NullInt64
		created, updated int64
	)

	err := s.Scan(
		&user.ID,
		&user.DisplayName,
		&email,
		&user.PasswordHash,
		&githubID,
		&user.AvatarURL,
		&profile,
		&user.OnboardingCompleted,
		&user.AuraScore,
		&user.CigarettesAvoided,
		&user.TotalMoneySaved,
		&streak,
		&smoked,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}

	user.Email = email.String
	user.GitHubID = githubID.Int64
	user.StreakStartTime = timePtr(streak)
	user.LastSmoked = timePtr(smoked)
	user.CreatedAt = fromMillis(created)
	user.UpdatedAt = fromMillis(updated)

	if profile.Valid && profile.String != "" {
		var sh model.SmokingProfile
		if err := json.Unmarshal([]byte(profile.String), &sh); err != nil {
			return nil, fmt.Errorf("decoding smoking history of %s: %w", user.ID, err)
		}
		user.SmokingHistory = &sh
	}

	return &user, nil
}

func encodeProfile(p *model.SmokingProfile) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding smoking history: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// nullString and nullInt store zero values as NULL so the UNIQUE columns
// (email, github_id) allow many accounts without them.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
