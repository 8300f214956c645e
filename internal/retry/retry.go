// Package retry gates an operation on a readiness predicate with a bounded
// number of fixed-delay re-checks.
package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/schedule"
)

const (
	DefaultMaxAttempts = 5
	DefaultDelay       = 500 * time.Millisecond
)

// ErrReadinessTimeout is reported when the predicate never became true or the
// back-off policy stopped.
var ErrReadinessTimeout = errors.New("editor not ready")

// Policy bounds the readiness wait. Zero values use the defaults. NewBackOff,
// when set, supplies the delays between checks instead of a constant Delay;
// it is called once per wait.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	NewBackOff  func() backoff.BackOff
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}
	if p.NewBackOff == nil {
		delay := p.Delay
		p.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(delay) }
	}
	return p
}

type Scheduler struct {
	clock  schedule.Scheduler
	policy Policy
}

func New(clock schedule.Scheduler, policy Policy) *Scheduler {
	if clock == nil {
		clock = schedule.Real()
	}
	return &Scheduler{clock: clock, policy: policy.normalized()}
}

func (s *Scheduler) Policy() Policy { return s.policy }

// EnsureReady runs op as soon as ready() reports true. The predicate is
// checked now and then once per Delay, at most MaxAttempts times in total;
// after the last failed check fail receives an error wrapping
// ErrReadinessTimeout and nothing further is scheduled. It never blocks.
func (s *Scheduler) EnsureReady(ready func() bool, op func(), fail func(error)) {
	delays := s.policy.NewBackOff()
	attempt := 0
	var check func()
	check = func() {
		attempt++
		if ready() {
			op()
			return
		}
		if attempt >= s.policy.MaxAttempts {
			if fail != nil {
				fail(fmt.Errorf("%w after %d attempts", ErrReadinessTimeout, attempt))
			}
			return
		}
		next := delays.NextBackOff()
		if next == backoff.Stop {
			if fail != nil {
				fail(fmt.Errorf("%w after %d attempts", ErrReadinessTimeout, attempt))
			}
			return
		}
		s.clock.AfterFunc(next, check)
	}
	check()
}
