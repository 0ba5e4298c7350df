package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/aurashift/internal/model"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/chart/data", "200"))

	RecordRequest("GET", "/api/chart/data", 200, 12*time.Millisecond)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/chart/data", "200"))
	assert.Equal(t, before+1, after)
}

func TestRecordRequest_EmptyRoute(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404"))

	RecordRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestDomainCounters(t *testing.T) {
	logged := testutil.ToFloat64(activitiesLogged.WithLabelValues("gym_workout"))
	recalcs := testutil.ToFloat64(scoreRecalculations)

	RecordActivityLogged(model.ActivityGymWorkout)
	RecordScoreRecalculation()
	RecordChartRequest("4d")

	assert.Equal(t, logged+1, testutil.ToFloat64(activitiesLogged.WithLabelValues("gym_workout")))
	assert.Equal(t, recalcs+1, testutil.ToFloat64(scoreRecalculations))
	assert.GreaterOrEqual(t, testutil.ToFloat64(chartRequests.WithLabelValues("4d")), 1.0)
}
