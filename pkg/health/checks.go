package health

import (
	"context"
	"fmt"
	"strings"
)

// Pinger is satisfied by the Redis and Postgres clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports down when p fails to answer.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := p.Ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// OptionalPingCheck is PingCheck for dependencies the service can run
// without: a failed ping degrades rather than fails readiness.
func OptionalPingCheck(p Pinger) Check {
	check := PingCheck(p)
	return func(ctx context.Context) ComponentHealth {
		res := check(ctx)
		if res.Status == StatusDown {
			res.Status = StatusDegraded
		}
		return res
	}
}

// Breaker exposes a circuit breaker's current state by name.
type Breaker interface {
	Name() string
	StateName() string
}

// BreakerCheck is degraded while any breaker is not closed.
func BreakerCheck(breakers ...Breaker) Check {
	return func(context.Context) ComponentHealth {
		var tripped []string
		for _, b := range breakers {
			if s := b.StateName(); s != "closed" {
				tripped = append(tripped, fmt.Sprintf("%s=%s", b.Name(), s))
			}
		}
		if len(tripped) == 0 {
			return ComponentHealth{Status: StatusUp}
		}
		return ComponentHealth{Status: StatusDegraded, Message: strings.Join(tripped, ", ")}
	}
}
