package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftroute/internal/route"
	"swiftroute/internal/ticket"
)

type predictorFunc func(ctx context.Context, req Request) (Result, error)

func (f predictorFunc) Predict(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

type recordingMetrics struct{ sources []string }

func (m *recordingMetrics) ForecastServed(source string, _ time.Duration) {
	m.sources = append(m.sources, source)
}

func testRequest() Request {
	r := route.Default()
	target, _ := r.Stop(2)
	return Request{
		BusName: "Swift-Kerala Express",
		Target:  target,
		Stops:   r.Stops(),
		Tickets: []ticket.Ticket{
			{ID: "a", BoardingIndex: 0, DestinationIndex: 1, PassengerCount: 10},
			{ID: "b", BoardingIndex: 0, DestinationIndex: 2, PassengerCount: 20},
			{ID: "c", BoardingIndex: 1, DestinationIndex: 4, PassengerCount: 7},
		},
		Capacity: 55,
	}
}

func TestFallback(t *testing.T) {
	res := Fallback(testRequest())
	assert.Equal(t, 20+7+5, res.PredictedCount)
	assert.Equal(t, "Manual calculation (API Offline)", res.Reason)
	assert.Equal(t, SourceFallback, res.Source)

	assert.Equal(t, 5, Fallback(Request{}).PredictedCount)
}

func TestForecastUsesModel(t *testing.T) {
	m := &recordingMetrics{}
	f := New(predictorFunc(func(context.Context, Request) (Result, error) {
		return Result{PredictedCount: 41, Reason: "festival traffic"}, nil
	}), time.Second, m)

	res := f.Forecast(context.Background(), testRequest())
	assert.Equal(t, Result{PredictedCount: 41, Reason: "festival traffic", Source: SourceModel}, res)
	assert.Equal(t, []string{SourceModel}, m.sources)
}

func TestForecastFallsBack(t *testing.T) {
	tests := map[string]Predictor{
		"network error": predictorFunc(func(context.Context, Request) (Result, error) {
			return Result{}, errors.New("dial tcp: connection refused")
		}),
		"negative count": predictorFunc(func(context.Context, Request) (Result, error) {
			return Result{PredictedCount: -3, Reason: "?"}, nil
		}),
		"empty reason": predictorFunc(func(context.Context, Request) (Result, error) {
			return Result{PredictedCount: 12}, nil
		}),
		"no predictor": nil,
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			m := &recordingMetrics{}
			res := New(p, time.Second, m).Forecast(context.Background(), testRequest())
			assert.Equal(t, Fallback(testRequest()), res)
			assert.Equal(t, []string{SourceFallback}, m.sources)
		})
	}
}

func TestForecastTimeout(t *testing.T) {
	f := New(predictorFunc(func(ctx context.Context, _ Request) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}), 20*time.Millisecond, nil)

	start := time.Now()
	res := f.Forecast(context.Background(), testRequest())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, SourceFallback, res.Source)
}

func TestPredictErrorsAreUnavailable(t *testing.T) {
	f := New(predictorFunc(func(context.Context, Request) (Result, error) {
		return Result{}, errors.New("boom")
	}), time.Second, nil)
	_, err := f.predict(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestBoardDiscardsStaleResponses(t *testing.T) {
	var b Board
	_, ok := b.Latest()
	require.False(t, ok)

	first := b.Begin()
	second := b.Begin()
	require.Greater(t, second, first)

	assert.True(t, b.Apply(second, Shown{Result: Result{PredictedCount: 30}}))
	assert.False(t, b.Apply(first, Shown{Result: Result{PredictedCount: 10}}), "older request resolved last")

	got, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 30, got.PredictedCount)

	third := b.Begin()
	assert.True(t, b.Apply(third, Shown{Result: Result{PredictedCount: 12}}))
	got, _ = b.Latest()
	assert.Equal(t, 12, got.PredictedCount)
}
