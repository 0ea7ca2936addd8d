// Package throttle provides an http.RoundTripper that bounds the request rate
// and the number of in-flight requests to the upstream API.
package throttle

import (
	"fmt"
	"net/http"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Transport applies the pipeline RateLimiter -> Slots -> Base.
// Nil Limiter or Slots disable the respective stage.
type Transport struct {
	Base    http.RoundTripper
	Limiter *rate.Limiter
	Slots   *semaphore.Weighted
}

// New builds a Transport allowing perSecond requests with the given burst and
// at most maxInFlight concurrent requests. Non-positive values disable a stage.
func New(base http.RoundTripper, perSecond float64, burst, maxInFlight int) *Transport {
	t := &Transport{Base: base}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		t.Limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	if maxInFlight > 0 {
		t.Slots = semaphore.NewWeighted(int64(maxInFlight))
	}
	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if t.Slots != nil {
		if err := t.Slots.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquire request slot: %w", err)
		}
		// Released on send error only; otherwise the slot is held until the
		// caller closes the response body.
		resp, err := t.base().RoundTrip(req)
		if err != nil {
			t.Slots.Release(1)
			return nil, err
		}
		resp.Body = &releaseBody{ReadCloser: resp.Body, release: func() { t.Slots.Release(1) }}
		return resp, nil
	}

	return t.base().RoundTrip(req)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}
