package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Policy controls retries and pacing for every provider in a Dispatcher.
type Policy struct {
	// MaxRetries is the number of extra attempts after a retryable failure.
	MaxRetries int
	// RequestsPerMinute paces calls per provider; zero means unlimited.
	RequestsPerMinute int
	// FailureThreshold is how many consecutive failures open a provider's breaker.
	FailureThreshold uint32
	// NewBackOff overrides the retry schedule, mostly for tests.
	NewBackOff func() backoff.BackOff
}

type member struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
}

// Dispatcher sends a request to the primary provider and walks the fallback
// chain when it keeps failing.
type Dispatcher struct {
	members []*member
	policy  Policy
	log     *zap.Logger
}

// NewDispatcher wraps providers (primary first) with a rate limiter, a
// circuit breaker and the retry policy.
func NewDispatcher(log *zap.Logger, policy Policy, providers ...Provider) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.FailureThreshold == 0 {
		policy.FailureThreshold = 3
	}
	if policy.NewBackOff == nil {
		policy.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 750 * time.Millisecond
			b.MaxInterval = 8 * time.Second
			return b
		}
	}

	d := &Dispatcher{policy: policy, log: log}
	for _, p := range providers {
		if p == nil {
			continue
		}
		limit := rate.Inf
		if policy.RequestsPerMinute > 0 {
			limit = rate.Every(time.Minute / time.Duration(policy.RequestsPerMinute))
		}
		threshold := policy.FailureThreshold
		name := string(p.Name())
		d.members = append(d.members, &member{
			provider: p,
			limiter:  rate.NewLimiter(limit, 1),
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    name,
				Timeout: 30 * time.Second,
				ReadyToTrip: func(c gobreaker.Counts) bool {
					return c.ConsecutiveFailures >= threshold
				},
				IsSuccessful: func(err error) bool {
					return err == nil || errors.Is(err, context.Canceled)
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					log.Debug("provider breaker state changed",
						zap.String("provider", name),
						zap.String("from", from.String()),
						zap.String("to", to.String()))
				},
			}),
		})
	}
	return d
}

// Providers returns the chain in dispatch order.
func (d *Dispatcher) Providers() []Name {
	out := make([]Name, len(d.members))
	for i, m := range d.members {
		out[i] = m.provider.Name()
	}
	return out
}

// Failure records why one provider in the chain gave up.
type Failure struct {
	Provider Name
	Err      error
}

// ChainError is returned when every provider failed.
type ChainError struct {
	Failures []Failure
}

// Error lists each provider with its failure.
func (e *ChainError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Err.Error()
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Provider, f.Err)
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes every underlying failure to errors.Is / errors.As.
func (e *ChainError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}

// Result is the text produced plus the provider that produced it.
type Result struct {
	Text     string
	Provider Name
}

// Generate tries each provider in order. req.Model only applies to the
// primary; fallbacks use their own configured model.
func (d *Dispatcher) Generate(ctx context.Context, req Request) (Result, error) {
	if len(d.members) == 0 {
		return Result{}, errors.WithHint(errors.New("no provider available"),
			"configure a provider in ~/.gh-commit-ai.yml or export one of GROQ_API_KEY, ANTHROPIC_API_KEY, OPENAI_API_KEY")
	}

	chainErr := &ChainError{}
	for i, m := range d.members {
		r := req
		if i > 0 {
			r.Model = ""
		}

		text, err := d.attempt(ctx, m, r)
		if err == nil {
			if i > 0 {
				d.log.Info("fallback provider answered", zap.String("provider", string(m.provider.Name())))
			}
			return Result{Text: text, Provider: m.provider.Name()}, nil
		}

		chainErr.Failures = append(chainErr.Failures, Failure{Provider: m.provider.Name(), Err: err})
		if ctx.Err() != nil {
			break
		}
		if i < len(d.members)-1 {
			d.log.Warn("provider failed, trying next",
				zap.String("provider", string(m.provider.Name())),
				zap.String("next", string(d.members[i+1].provider.Name())),
				zap.Error(err))
		}
	}

	if len(chainErr.Failures) == 1 {
		return Result{}, chainErr.Failures[0].Err
	}
	return Result{}, chainErr
}

func (d *Dispatcher) attempt(ctx context.Context, m *member, req Request) (string, error) {
	name := string(m.provider.Name())
	b := backoff.WithContext(backoff.WithMaxRetries(d.policy.NewBackOff(), uint64(d.policy.MaxRetries)), ctx)

	attempt := 0
	op := func() (string, error) {
		attempt++
		if err := m.limiter.Wait(ctx); err != nil {
			return "", backoff.Permanent(err)
		}

		start := time.Now()
		out, err := m.breaker.Execute(func() (interface{}, error) {
			return m.provider.Generate(ctx, req)
		})
		if err != nil {
			d.log.Debug("provider attempt failed",
				zap.String("provider", name),
				zap.Int("attempt", attempt),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			if !Retryable(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}

		d.log.Debug("provider answered",
			zap.String("provider", name),
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", time.Since(start)))
		return out.(string), nil
	}

	return backoff.RetryWithData(op, b)
}
