package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/registry"
)

type fakeRegistries []registry.Stats

func (f fakeRegistries) Stats() []registry.Stats { return f }

type fakeConnections int

func (f fakeConnections) ConnectionCount() int { return int(f) }

func TestCollect(t *testing.T) {
	recorder := o11y.NewRecorder("test")
	recorder.Counter("frames_total").Add(context.Background(), 3)

	regs := fakeRegistries{
		{Name: "user", Topics: 2, Subscriptions: 3, Subscribers: 2},
		{Name: "chat", Topics: 1, Subscriptions: 2, Subscribers: 2},
	}
	job := NewJob(regs, fakeConnections(4), recorder, zap.NewNop())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return fixed }

	report := job.Collect()
	assert.Equal(t, fixed, report.Time)
	assert.Equal(t, 4, report.Connections)
	assert.Equal(t, []registry.Stats(regs), report.Registries)
	require.NotNil(t, report.Metrics)
	assert.Equal(t, int64(3), report.Metrics.Counters["frames_total"])
}

func TestCollectWithoutSources(t *testing.T) {
	job := NewJob(nil, nil, nil, nil)
	report := job.Collect()
	assert.Zero(t, report.Connections)
	assert.Nil(t, report.Registries)
	assert.Nil(t, report.Metrics)
}

func TestRunLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	regs := fakeRegistries{{Name: "chat", Topics: 5, Subscriptions: 7, Subscribers: 3}}
	job := NewJob(regs, fakeConnections(2), o11y.NewRecorder(""), zap.New(core))

	last, runs := job.Last()
	assert.Nil(t, last)
	assert.Zero(t, runs)

	job.Run()

	entries := logs.FilterMessage("Registry statistics").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["connections"])
	chat, ok := fields["chat"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(5), chat["topics"])
	assert.Equal(t, int64(7), chat["subscriptions"])
	assert.Equal(t, int64(3), chat["subscribers"])

	assert.Equal(t, 1, logs.FilterMessage("Metrics snapshot").Len())

	last, runs = job.Last()
	require.NotNil(t, last)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 2, last.Connections)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler("every so often", nil, NewJob(nil, nil, nil, nil), zap.NewNop())
	assert.Error(t, err)
}

func TestSchedulerRunsJob(t *testing.T) {
	job := NewJob(fakeRegistries{}, fakeConnections(1), nil, zap.NewNop())
	scheduler, err := NewScheduler("@every 1s", time.UTC, job, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, scheduler.Next().IsZero())
	scheduler.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, scheduler.Stop(ctx))
	}()

	assert.Eventually(t, func() bool {
		_, runs := job.Last()
		return runs > 0
	}, 3*time.Second, 50*time.Millisecond)
	assert.False(t, scheduler.Next().IsZero())
}

func TestZapCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapCronLogger(zap.New(core))

	logger.Info("tick", "entry", 1, "dangling")
	logger.Error(errors.New("boom"), "failed", "entry", 2)

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, zapcore.DebugLevel, all[0].Level)
	assert.Equal(t, map[string]interface{}{"entry": int64(1)}, all[0].ContextMap())
	assert.Equal(t, zapcore.ErrorLevel, all[1].Level)
	assert.Equal(t, "boom", all[1].ContextMap()["error"])
}
