package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/metrics"
)

type scriptedLock struct {
	acquire   bool
	refreshes []bool
	released  int
}

func (l *scriptedLock) Acquire(context.Context) (bool, error) { return l.acquire, nil }

func (l *scriptedLock) Refresh(context.Context) (bool, error) {
	if len(l.refreshes) == 0 {
		return true, nil
	}
	next := l.refreshes[0]
	l.refreshes = l.refreshes[1:]
	return next, nil
}

func (l *scriptedLock) Release(context.Context) error {
	l.released++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestTickRunsEveryDueJobEvenOnFailure(t *testing.T) {
	ok := &countingJob{name: "reservation-expiry"}
	failing := &countingJob{name: "rescue-bag-expiry", err: errors.New("boom")}
	lock := &scriptedLock{acquire: true}
	reg := prometheus.NewRegistry()

	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Schedule: NewSchedule(ok, failing),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	require.NoError(t, svc.tick(context.Background()))

	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, lock.released)

	count, err := testutil.GatherAndCount(reg, "foodrescue_cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTickSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	job := &countingJob{name: "reservation-expiry"}
	lock := &scriptedLock{acquire: false}
	svc, err := NewService(ServiceParams{Logger: quietLogger(), Schedule: NewSchedule(job), Lock: lock})
	require.NoError(t, err)

	require.NoError(t, svc.tick(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.released)
}

func TestTickStopsWhenLeaseIsLost(t *testing.T) {
	first := &countingJob{name: "reservation-expiry"}
	second := &countingJob{name: "rescue-bag-expiry"}
	lock := &scriptedLock{acquire: true, refreshes: []bool{false}}
	svc, err := NewService(ServiceParams{Logger: quietLogger(), Schedule: NewSchedule(first, second), Lock: lock})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.tick(context.Background()), errLeaseLost)
	assert.Equal(t, 1, first.runs)
	assert.Zero(t, second.runs)
}

func TestTickRespectsCadence(t *testing.T) {
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	retention := &countingJob{name: "outbox-retention"}
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Schedule: NewSchedule().Every(retention, time.Hour),
		Lock:     &scriptedLock{acquire: true},
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.tick(context.Background()))
	now = now.Add(time.Minute)
	require.NoError(t, svc.tick(context.Background()))
	assert.Equal(t, 1, retention.runs)
}

func TestRunReturnsOnCancel(t *testing.T) {
	job := &countingJob{name: "reservation-expiry"}
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Schedule: NewSchedule(job),
		Lock:     &scriptedLock{acquire: true},
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &scriptedLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: quietLogger()})
	assert.Error(t, err)
}
