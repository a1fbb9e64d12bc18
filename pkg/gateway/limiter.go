package gateway

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter bounds outbound calls: a semaphore caps in-flight calls and a
// token bucket enforces minimum spacing between call bursts.
// ⭐ SSOT: 전역 변수 금지 — 명시적으로 생성해서 게이트웨이에 주입한다.
// 테스트마다 독립 인스턴스를 쓸 수 있다.
type Limiter struct {
	sem   *semaphore.Weighted
	pacer *rate.Limiter
}

// NewLimiter creates a limiter with the given in-flight cap and call rate.
// maxInFlight < 1 또는 callsPerSecond <= 0이면 최소값으로 보정한다.
func NewLimiter(maxInFlight int, callsPerSecond float64) *Limiter {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}
	return &Limiter{
		sem:   semaphore.NewWeighted(int64(maxInFlight)),
		pacer: rate.NewLimiter(rate.Limit(callsPerSecond), 1),
	}
}

// Acquire blocks until a slot and a rate token are available, or the
// context is cancelled. 성공 시 반드시 Release를 호출해야 한다.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := l.pacer.Wait(ctx); err != nil {
		l.sem.Release(1)
		return err
	}
	return nil
}

// Release returns the in-flight slot
func (l *Limiter) Release() {
	l.sem.Release(1)
}
