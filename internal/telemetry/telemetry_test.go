package telemetry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestMetrics_ObserveSuccessAndFailure(t *testing.T) {
	m := NewMetrics()

	m.ObserveSuccess(false, 50000, 10, 3*time.Millisecond)
	m.ObserveSuccess(true, 2000, 0, time.Millisecond)
	m.ObserveFailure("parse", 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(OutcomeSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(OutcomeFastPath)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesTotal.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("parse")))
	assert.Equal(t, 52000.0, testutil.ToFloat64(m.BytesTotal))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.SubUnitsTotal))
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := NewMetrics()

	m.ObserveRun(1500*time.Millisecond, false)
	m.ObserveRun(500*time.Millisecond, true)

	assert.Equal(t, 0.5, testutil.ToFloat64(m.RunDurationSeconds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("true")))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.ObserveFailure("read", time.Millisecond)

	assert.NotSame(t, a.Registry(), b.Registry())
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FilesTotal.WithLabelValues(OutcomeFailed)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveSuccess(false, 1, 1, time.Millisecond)
		m.ObserveFailure("read", time.Millisecond)
		m.ObserveRun(time.Second, false)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveSuccess(false, 100, 3, time.Millisecond)

	path := filepath.Join(t.TempDir(), "deserialize_bench.prom")
	require.NoError(t, m.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(content)
	assert.Contains(t, text, "deserialize_bench_file_bytes_total 100")
	assert.Contains(t, text, "deserialize_bench_file_subunits_total 3")
	assert.Contains(t, text, `deserialize_bench_file_processed_total{outcome="succeeded"} 1`)
}

func TestMetrics_WriteTextfileBadPath(t *testing.T) {
	m := NewMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.Error(t, err)
}

func TestInitTracing_None(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TraceConfig{Exporter: ExporterNone})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	shutdown, err = InitTracing(context.Background(), TraceConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_Unknown(t *testing.T) {
	_, err := InitTracing(context.Background(), TraceConfig{Exporter: "jaeger"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInitTracing_StdoutExportsSpans(t *testing.T) {
	original := otel.GetTracerProvider()
	defer otel.SetTracerProvider(original)

	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TraceConfig{
		Exporter: ExporterStdout,
		Writer:   &buf,
		Version:  "test",
	})
	require.NoError(t, err)

	_, span := Tracer("telemetry-test").Start(context.Background(), "deserialize.run")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.True(t, strings.Contains(buf.String(), "deserialize.run"), "exported spans should include the span name")
	assert.Contains(t, buf.String(), ServiceName)
}
