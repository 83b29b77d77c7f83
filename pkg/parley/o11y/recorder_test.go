package o11y

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder("test")
	ctx := context.Background()

	c := r.Counter("requests_total")
	c.Add(ctx, 1, Label{Key: "channel", Value: "chats"})
	c.Add(ctx, 2, Label{Key: "channel", Value: "chats"})
	c.Add(ctx, 5, Label{Key: "channel", Value: "friends"})
	r.Counter("plain_total").Add(ctx, 7)

	snap := r.Snapshot()
	assert.Equal(t, "test", snap.ServiceName)
	assert.Equal(t, int64(3), snap.Counters["requests_total{channel=chats}"])
	assert.Equal(t, int64(5), snap.Counters["requests_total{channel=friends}"])
	assert.Equal(t, int64(7), snap.Counters["plain_total"])
}

func TestRecorderLabelOrderIsIrrelevant(t *testing.T) {
	r := NewRecorder("")
	ctx := context.Background()

	r.Counter("x").Add(ctx, 1, Label{Key: "a", Value: "1"}, Label{Key: "b", Value: "2"})
	r.Counter("x").Add(ctx, 1, Label{Key: "b", Value: "2"}, Label{Key: "a", Value: "1"})

	assert.Equal(t, int64(2), r.Snapshot().Counters["x{a=1,b=2}"])
}

func TestRecorderHistogramAndGauge(t *testing.T) {
	r := NewRecorder("test")
	ctx := context.Background()

	h := r.Histogram("latency")
	for _, v := range []float64{0.5, 0.1, 0.9} {
		h.Record(ctx, v)
	}
	r.Gauge("connections").Set(ctx, 4)
	r.Gauge("connections").Set(ctx, 2)

	snap := r.Snapshot()
	summary := snap.Histograms["latency"]
	assert.Equal(t, int64(3), summary.Count)
	assert.InDelta(t, 1.5, summary.Sum, 1e-9)
	assert.Equal(t, 0.1, summary.Min)
	assert.Equal(t, 0.9, summary.Max)
	assert.Equal(t, 2.0, snap.Gauges["connections"])
}

func TestRecorderConcurrentAdds(t *testing.T) {
	r := NewRecorder("test")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Counter("hits").Add(context.Background(), 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), r.Snapshot().Counters["hits"])
}

type fakeSpan struct {
	attrs  []Label
	status SpanStatusCode
	desc   string
	ended  bool
}

func (s *fakeSpan) SetAttributes(labels ...Label)           { s.attrs = append(s.attrs, labels...) }
func (s *fakeSpan) SetStatus(code SpanStatusCode, d string) { s.status, s.desc = code, d }
func (s *fakeSpan) End()                                    { s.ended = true }

type fakeTracer struct{ spans []*fakeSpan }

func (f *fakeTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	span := &fakeSpan{}
	f.spans = append(f.spans, span)
	return ctx, span
}

func TestStartSpan(t *testing.T) {
	_, finish := StartSpan(context.Background(), nil, "noop")
	finish(errors.New("ignored"))

	tracer := &fakeTracer{}
	_, finish = StartSpan(context.Background(), tracer, "hub.leave", Label{Key: "chat_id", Value: "c1"})
	finish(errors.New("boom"))

	require.Len(t, tracer.spans, 1)
	span := tracer.spans[0]
	assert.True(t, span.ended)
	assert.Equal(t, SpanStatusError, span.status)
	assert.Equal(t, "boom", span.desc)
	assert.Equal(t, []Label{{Key: "chat_id", Value: "c1"}}, span.attrs)
}
