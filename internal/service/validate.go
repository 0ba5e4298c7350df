package service

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/sakif/aurashift/internal/apperror"
	"github.com/sakif/aurashift/internal/model"
	"github.com/sakif/aurashift/internal/scoring"
)

const (
	maxDisplayNameLength = 100
	minPasswordLength    = 6
	maxPasswordLength    = 72 // bcrypt input limit
	maxCigarettesPerDay  = 1000
)

func parseActivityType(raw string) (model.ActivityType, error) {
	if raw == "" {
		return "", apperror.ValidationFailed("type", "type is required")
	}
	t, err := model.ParseActivityType(raw)
	if err != nil {
		return "", apperror.ValidationFailed("type", fmt.Sprintf("type must be one of %s", joinTypes()))
	}
	return t, nil
}

func joinTypes() string {
	names := make([]string, len(model.AllActivityTypes))
	for i, t := range model.AllActivityTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func parseTimeRange(raw string) (scoring.TimeRange, error) {
	r, err := scoring.ParseTimeRange(raw)
	if err != nil {
		return "", apperror.ValidationFailed("timeRange", "Invalid time range. Must be 4d, 30d, or 90d")
	}
	return r, nil
}

// validateMetadata checks the well-known keys. Unknown keys pass through.
func validateMetadata(md model.Metadata) error {
	if v, ok := md["intensity"]; ok {
		s, isString := v.(string)
		if !isString || !slices.Contains(model.Intensities, s) {
			return apperror.ValidationFailed("metadata.intensity", "intensity must be low, medium, or high")
		}
	}
	for _, key := range []string{"note", "location"} {
		if v, ok := md[key]; ok {
			if _, isString := v.(string); !isString {
				return apperror.ValidationFailed("metadata."+key, key+" must be a string")
			}
		}
	}
	if v, ok := md["duration"]; ok {
		d, isNumber := v.(float64)
		if !isNumber || d < 0 {
			return apperror.ValidationFailed("metadata.duration", "duration must be a non-negative number")
		}
	}
	return nil
}

// normalizeEmail trims and lower-cases the address and rejects anything that
// is not a bare addr-spec.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", apperror.ValidationFailed("email", "Please provide a valid email")
	}
	return email, nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return apperror.ValidationFailed("password", fmt.Sprintf("password must be at least %d characters long", minPasswordLength))
	case len(password) > maxPasswordLength:
		return apperror.ValidationFailed("password", fmt.Sprintf("password must be %d bytes or fewer", maxPasswordLength))
	}
	return nil
}

// parseDateBound accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
// A plain endDate covers the whole day.
func parseDateBound(field, raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed(field, field+" must be an ISO 8601 date")
	}
	if endOfDay {
		t = t.Add(scoring.Day - time.Millisecond)
	}
	return t, nil
}
