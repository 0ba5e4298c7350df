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

	"github.com/sakif/aurashift/internal/apperror"
	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/repository"
)

var _ repository.ActivityRepository = (*ActivityDB)(nil)

// ActivityDB stores activities in the activities table.
type ActivityDB struct {
	conn *sql.DB
}

const activityColumns = `id, user_id, type, points, metadata, created_at, updated_at`

// Create assigns the ID and, when unset, CreatedAt. Points are taken from the
// activity as built by model.NewActivity.
func (a *ActivityDB) Create(ctx context.Context, activity *model.Activity) error {
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	activity.ID = xid.New().String()
	activity.CreatedAt = normalize(activity.CreatedAt)
	activity.UpdatedAt = activity.CreatedAt

	md, err := encodeMetadata(activity.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: creating activity: %w", err)
	}

	_, err = a.conn.ExecContext(ctx,
		`INSERT INTO activities (`+activityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.UserID,
		string(activity.Type),
		activity.Points,
		md,
		toMillis(activity.CreatedAt),
		toMillis(activity.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating activity: %w", err)
	}

	return nil
}

// GetByID only matches activities owned by userID.
func (a *ActivityDB) GetByID(ctx context.Context, userID, id string) (*model.Activity, error) {
	row := a.conn.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ? AND user_id = ?`,
		id, userID,
	)

	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("activity", id)
		}
		return nil, fmt.Errorf("sqlite: getting activity %s: %w", id, err)
	}

	return activity, nil
}

func (a *ActivityDB) Find(ctx context.Context, q repository.ActivityQuery) ([]model.Activity, error) {
	where, args := activityWhere(q)

	order := "DESC"
	if q.Ascending {
		order = "ASC"
	}
	query := `SELECT ` + activityColumns + ` FROM activities ` + where +
		` ORDER BY created_at ` + order + `, id ` + order

	switch {
	case q.Limit > 0:
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		// SQLite needs a LIMIT before OFFSET; -1 means no limit.
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, q.Offset)
	}

	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding activities: %w", err)
	}
	defer rows.Close()

	activities := []model.Activity{}
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning activity: %w", err)
		}
		activities = append(activities, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating activities: %w", err)
	}

	return activities, nil
}

func (a *ActivityDB) Count(ctx context.Context, q repository.ActivityQuery) (int, error) {
	where, args := activityWhere(q)

	var n int
	if err := a.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting activities: %w", err)
	}
	return n, nil
}

// Update writes the mutable fields (type, points, metadata). CreatedAt never
// changes.
func (a *ActivityDB) Update(ctx context.Context, activity *model.Activity) error {
	md, err := encodeMetadata(activity.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: updating activity %s: %w", activity.ID, err)
	}

	activity.UpdatedAt = normalize(time.Now())

	result, err := a.conn.ExecContext(ctx,
		`UPDATE activities SET type = ?, points = ?, metadata = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		string(activity.Type),
		activity.Points,
		md,
		toMillis(activity.UpdatedAt),
		activity.ID,
		activity.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating activity %s: %w", activity.ID, err)
	}

	return requireRow(result, "activity", activity.ID)
}

func (a *ActivityDB) Delete(ctx context.Context, userID, id string) error {
	result, err := a.conn.ExecContext(ctx,
		`DELETE FROM activities WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting activity %s: %w", id, err)
	}

	return requireRow(result, "activity", id)
}

// activityWhere builds the WHERE clause shared by Find and Count.
func activityWhere(q repository.ActivityQuery) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{q.UserID}

	if q.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(q.Type))
	}
	if !q.From.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, toMillis(q.From))
	}
	if !q.To.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, toMillis(q.To))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(s scanner) (*model.Activity, error) {
	var (
		activity         model.Activity
		typ, md          string
		created, updated int64
	)

	if err := s.Scan(&activity.ID, &activity.UserID, &typ, &activity.Points, &md, &created, &updated); err != nil {
		return nil, err
	}

	activity.Type = model.ActivityType(typ)
	activity.CreatedAt = fromMillis(created)
	activity.UpdatedAt = fromMillis(updated)

	if err := json.Unmarshal([]byte(md), &activity.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata of %s: %w", activity.ID, err)
	}
	if len(activity.Metadata) == 0 {
		activity.Metadata = nil
	}

	return &activity, nil
}

func encodeMetadata(md model.Metadata) (string, error) {
	if len(md) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	return string(b), nil
}

// requireRow turns "no rows affected" into a NotFound error.
func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
