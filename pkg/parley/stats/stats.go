// Package stats periodically logs registry sizes, open connections and,
// when an in-process recorder is in use, metric snapshots.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/registry"
)

// RegistrySource is satisfied by the hub.
type RegistrySource interface {
	Stats() []registry.Stats
}

// ConnectionCounter is satisfied by the realtime listener.
type ConnectionCounter interface {
	ConnectionCount() int
}

// Report is what one run of the job collects.
type Report struct {
	Time        time.Time        `json:"time"`
	Connections int              `json:"connections"`
	Registries  []registry.Stats `json:"registries"`
	Metrics     *o11y.Snapshot   `json:"metrics,omitempty"`
}

// Job is a cron.Job that logs a Report on every run.
type Job struct {
	registries  RegistrySource
	connections ConnectionCounter
	recorder    *o11y.Recorder
	logger      *zap.Logger
	clock       func() time.Time

	mu   sync.Mutex
	last *Report
	runs int
}

// NewJob returns a job reading from registries and connections. Either may
// be nil; recorder is optional.
func NewJob(registries RegistrySource, connections ConnectionCounter, recorder *o11y.Recorder, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		registries:  registries,
		connections: connections,
		recorder:    recorder,
		logger:      logger,
		clock:       time.Now,
	}
}

// Collect gathers a report without logging it.
func (j *Job) Collect() Report {
	report := Report{Time: j.clock()}
	if j.registries != nil {
		report.Registries = j.registries.Stats()
	}
	if j.connections != nil {
		report.Connections = j.connections.ConnectionCount()
	}
	if j.recorder != nil {
		snapshot := j.recorder.Snapshot()
		report.Metrics = &snapshot
	}
	return report
}

func (j *Job) Run() {
	report := j.Collect()

	fields := []zap.Field{zap.Int("connections", report.Connections)}
	for _, s := range report.Registries {
		fields = append(fields, zap.Object(s.Name, registryStats(s)))
	}
	j.logger.Info("Registry statistics", fields...)

	if report.Metrics != nil {
		j.logger.Debug("Metrics snapshot",
			zap.Any("counters", report.Metrics.Counters),
			zap.Any("gauges", report.Metrics.Gauges),
			zap.Any("histograms", report.Metrics.Histograms),
		)
	}

	j.mu.Lock()
	j.last = &report
	j.runs++
	j.mu.Unlock()
}

// Last returns the most recent report and how many runs have completed.
func (j *Job) Last() (*Report, int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last, j.runs
}

type registryStats registry.Stats

func (s registryStats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("topics", int64(s.Topics))
	enc.AddInt64("subscriptions", int64(s.Subscriptions))
	enc.AddInt64("subscribers", int64(s.Subscribers))
	return nil
}

// Scheduler runs a Job on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	id   cron.EntryID
}

// Parser accepts five field schedules with an optional leading seconds
// field, and descriptors like "@every 1m".
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewScheduler validates schedule and prepares job to run on it. A nil
// location means time.Local.
func NewScheduler(schedule string, location *time.Location, job cron.Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.Local
	}

	c := cron.New(
		cron.WithLogger(NewZapCronLogger(logger)),
		cron.WithParser(Parser),
		cron.WithLocation(location),
		cron.WithChain(cron.SkipIfStillRunning(NewZapCronLogger(logger))),
	)

	id, err := c.AddJob(schedule, job)
	if err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}

	return &Scheduler{cron: c, id: id}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Next is the time of the next scheduled run, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}

// Stop stops scheduling and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ZapCronLogger adapts a zap.Logger to the cron.Logger interface. Cron's
// informational chatter goes to debug.
type ZapCronLogger struct {
	logger *zap.Logger
}

func NewZapCronLogger(logger *zap.Logger) *ZapCronLogger {
	return &ZapCronLogger{logger: logger}
}

func (z *ZapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Debug(msg, fields(keysAndValues)...)
}

func (z *ZapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.logger.Error(msg, append([]zap.Field{zap.Error(err)}, fields(keysAndValues)...)...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			out = append(out, zap.Any(key, keysAndValues[i+1]))
		}
	}
	return out
}
