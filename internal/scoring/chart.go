package scoring

import (
	"fmt"
	"time"

	"github.com/sakif/aurashift/internal/model"
)

// Defaults used for chart expectations when the user has no smoking profile.
const (
	DefaultCigarettesPerDay = 20
	DefaultCostPerCigarette = 5.0
)

// TimeRange selects one of the fixed chart windows.
type TimeRange string

const (
	Range4Days  TimeRange = "4d"
	Range30Days TimeRange = "30d"
	Range90Days TimeRange = "90d"
)

// TimeRanges lists the supported ranges.
var TimeRanges = []TimeRange{Range4Days, Range30Days, Range90Days}

// period describes how a time range is cut into buckets.
type period struct {
	window     time.Duration
	width      time.Duration
	buckets    int
	labelUnit  string
	periodDays int // days of expected smoking per bucket
}

func (r TimeRange) period() (period, bool) {
	switch r {
	case Range4Days:
		return period{window: 4 * Day, width: Day, buckets: 4, labelUnit: "Day", periodDays: 1}, true
	case Range30Days:
		return period{window: 30 * Day, width: 7 * Day, buckets: 4, labelUnit: "Week", periodDays: 7}, true
	case Range90Days:
		return period{window: 90 * Day, width: 30 * Day, buckets: 3, labelUnit: "Month", periodDays: 30}, true
	}
	return period{}, false
}

// ParseTimeRange rejects anything outside TimeRanges, including "".
func ParseTimeRange(s string) (TimeRange, error) {
	r := TimeRange(s)
	if _, ok := r.period(); !ok {
		return "", fmt.Errorf("invalid time range %q: must be 4d, 30d, or 90d", s)
	}
	return r, nil
}

// WindowStart returns the first instant covered by the range ending at now.
func (r TimeRange) WindowStart(now time.Time) time.Time {
	p, _ := r.period()
	return now.Add(-p.window)
}

// Chart is the multi-series payload the client draws. Every series is
// index-aligned with Labels.
type Chart struct {
	Labels []string `json:"labels"`
	Series Series   `json:"series"`
}

type Series struct {
	AuraScore          []int     `json:"aura_score"`
	CigarettesAvoided  []int     `json:"cigarettes_avoided"`
	CigarettesConsumed []int     `json:"cigarettes_consumed"`
	MoneySaved         []float64 `json:"money_saved"`
}

// BuildChart buckets activities for the range ending at now.
//
// activities may contain the user's whole history: anything before the
// window feeds the baseline score, anything after now is ignored. Buckets are
// half-open [start, start+width); the last bucket is closed at now so an
// in-window activity always lands in exactly one bucket.
//
// aura_score is cumulative: the floored baseline plus every bucket so far,
// floored again on output. Avoided and saved are per bucket against the
// period's own expectation (cigarettesPerDay * days in the bucket), not the
// since-start estimate stored on the user.
func BuildChart(activities []model.Activity, profile *model.SmokingProfile, r TimeRange, now time.Time) (Chart, error) {
	p, ok := r.period()
	if !ok {
		return Chart{}, fmt.Errorf("invalid time range %q", r)
	}

	windowStart := now.Add(-p.window)
	baseline := 0
	points := make([]int, p.buckets)
	consumed := make([]int, p.buckets)

	for _, a := range activities {
		switch {
		case a.CreatedAt.Before(windowStart):
			baseline += a.Points
		case a.CreatedAt.After(now):
			continue
		default:
			i := min(int(a.CreatedAt.Sub(windowStart)/p.width), p.buckets-1)
			points[i] += a.Points
			if a.Type == model.ActivityCigaretteConsumed {
				consumed[i]++
			}
		}
	}

	perDay, cost := DefaultCigarettesPerDay, DefaultCostPerCigarette
	if profile != nil {
		perDay, cost = profile.CigarettesPerDay, profile.CostPerCigarette
	}
	expected := perDay * p.periodDays

	chart := Chart{
		Labels: make([]string, p.buckets),
		Series: Series{
			AuraScore:          make([]int, p.buckets),
			CigarettesAvoided:  make([]int, p.buckets),
			CigarettesConsumed: consumed,
			MoneySaved:         make([]float64, p.buckets),
		},
	}

	running := max(0, baseline)
	for i := range p.buckets {
		running += points[i]

		chart.Labels[i] = fmt.Sprintf("%s %d", p.labelUnit, i+1)
		chart.Series.AuraScore[i] = max(0, running)
		chart.Series.CigarettesAvoided[i] = max(0, expected-consumed[i])

		saved := float64(expected)*cost - float64(consumed[i])*cost
		chart.Series.MoneySaved[i] = RoundMoney(max(0, saved))
	}

	return chart, nil
}
