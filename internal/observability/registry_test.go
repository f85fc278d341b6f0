package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPrometheusRegistryRecordsAdmission(t *testing.T) {
	r := NewPrometheusRegistry()
	before := testutil.ToFloat64(AdmissionCount.WithLabelValues("shaped"))

	r.IncrementAdmissions("shaped")
	r.SetUsedCapacity(0.65)
	r.SetCutoffCount(2)
	r.SetSegmentPrice("pg/dvd", 4.2)

	assert.Equal(t, before+1, testutil.ToFloat64(AdmissionCount.WithLabelValues("shaped")))
	assert.Equal(t, 0.65, testutil.ToFloat64(UsedCapacity))
	assert.Equal(t, 2.0, testutil.ToFloat64(CutoffCount))
	assert.Equal(t, 4.2, testutil.ToFloat64(SegmentPrice.WithLabelValues("pg/dvd")))
}

func TestPrometheusRegistryCounters(t *testing.T) {
	r := NewPrometheusRegistry()
	ticks := testutil.ToFloat64(TickCount)
	mirror := testutil.ToFloat64(MirrorErrors)
	reports := testutil.ToFloat64(ReportCount.WithLabelValues("auction"))

	r.IncrementTicks()
	r.IncrementMirrorErrors()
	r.IncrementReports("auction")

	assert.Equal(t, ticks+1, testutil.ToFloat64(TickCount))
	assert.Equal(t, mirror+1, testutil.ToFloat64(MirrorErrors))
	assert.Equal(t, reports+1, testutil.ToFloat64(ReportCount.WithLabelValues("auction")))
}

func TestNoOpRegistrySatisfiesInterface(t *testing.T) {
	var r MetricsRegistry = NewNoOpRegistry()
	r.IncrementTicks()
	r.SetUsedCapacity(1)
}

func TestLogLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENV", "dev")
	assert.Equal(t, zap.DebugLevel, getLogLevel())

	t.Setenv("ENV", "production")
	assert.Equal(t, zap.InfoLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, zap.WarnLevel, getLogLevel())

	t.Setenv("LOG_LEVEL", "bogus")
	assert.Equal(t, zap.InfoLevel, getLogLevel())
}

func TestShouldSampleBounds(t *testing.T) {
	assert.True(t, ShouldSample(1))
	assert.False(t, ShouldSample(0))
}

func TestInitLoggerWithService(t *testing.T) {
	logger, err := InitLoggerWithService("openbidder-test")
	assert.NoError(t, err)
	assert.NotNil(t, logger)
}
