package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEnrollmentCountsByOutcome(t *testing.T) {
	r := New()
	r.ObserveEnrollment("created", 10*time.Millisecond)
	r.ObserveEnrollment("created", 5*time.Millisecond)
	r.ObserveEnrollment("no_seats_available", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.outcomes.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("no_seats_available")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveEnrollment("created", time.Millisecond)
	r.IntegrityWarning("negative")
}

func TestHandlerExposesCounters(t *testing.T) {
	r := New()
	r.IntegrityWarning("negative")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `workshop_enrollment_integrity_warnings_total{kind="negative"} 1`)
}
