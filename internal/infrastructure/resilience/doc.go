// Package resilience implements a three-state circuit breaker used on
// the link to the out-of-process execution host.
//
// The breaker sits between the orchestrator's host calls and the
// transport: while the host link is failing, calls fail fast with
// ErrCircuitOpen instead of piling timeouts onto the lifecycle loop.
//
//	breaker := resilience.New("host", resilience.Settings{
//		MaxRequests: 3,
//		Interval:    30 * time.Second,
//		Timeout:     10 * time.Second,
//		ReadyToTrip: func(counts resilience.Counts) bool {
//			return counts.ConsecutiveFailures >= 5
//		},
//	})
//
//	result, err := breaker.Execute(func() (interface{}, error) {
//		return client.Call()
//	})
package resilience
