// Package forecast estimates how full the bus will be at a given stop. A
// hosted model is asked first; any failure falls back to counting booked
// passengers.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"swiftroute/internal/route"
	"swiftroute/internal/ticket"
)

// ErrUnavailable marks a predictor failure. It never reaches callers of
// Forecaster.Forecast.
var ErrUnavailable = errors.New("forecast unavailable")

const (
	DefaultTimeout = 10 * time.Second

	// fallbackSurplus stands in for walk-in passengers nobody booked.
	fallbackSurplus = 5
	fallbackReason  = "Manual calculation (API Offline)"
)

const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

type Request struct {
	BusName  string
	Target   route.Stop
	Tickets  []ticket.Ticket
	Stops    []route.Stop
	Capacity int
}

type Result struct {
	PredictedCount int    `json:"predictedCount"`
	Reason         string `json:"reason"`
	Source         string `json:"source"`
}

type Predictor interface {
	Predict(ctx context.Context, req Request) (Result, error)
}

type Metrics interface {
	ForecastServed(source string, d time.Duration)
}

type Forecaster struct {
	predictor Predictor
	timeout   time.Duration
	metrics   Metrics
}

// New returns a Forecaster. A nil predictor always yields the fallback.
func New(p Predictor, timeout time.Duration, m Metrics) *Forecaster {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Forecaster{predictor: p, timeout: timeout, metrics: m}
}

// Forecast always returns a usable result.
func (f *Forecaster) Forecast(ctx context.Context, req Request) Result {
	start := time.Now()
	res, err := f.predict(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("bus", req.BusName).Str("stop", req.Target.Name).Msg("forecast falling back")
		res = Fallback(req)
	}
	if f.metrics != nil {
		f.metrics.ForecastServed(res.Source, time.Since(start))
	}
	return res
}

func (f *Forecaster) predict(ctx context.Context, req Request) (Result, error) {
	if f.predictor == nil {
		return Result{}, fmt.Errorf("%w: no predictor configured", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res, err := f.predictor.Predict(ctx, req)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res.PredictedCount < 0 || res.Reason == "" {
		return Result{}, fmt.Errorf("%w: malformed prediction %+v", ErrUnavailable, res)
	}
	res.Source = SourceModel
	return res, nil
}

// Fallback counts passengers booked to the target stop or beyond and adds a
// fixed allowance for walk-ins.
func Fallback(req Request) Result {
	n := 0
	for _, t := range req.Tickets {
		if t.DestinationIndex >= req.Target.Index {
			n += t.PassengerCount
		}
	}
	return Result{PredictedCount: n + fallbackSurplus, Reason: fallbackReason, Source: SourceFallback}
}
