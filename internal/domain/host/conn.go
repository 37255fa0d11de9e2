package host

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/luminos-ui/shellhost/internal/infrastructure/resilience"
)

// ConnManager owns the gRPC connection to an out-of-process execution
// host: dialing, liveness watching and circuit breaking. The lifecycle
// RPCs themselves sit behind the Host interface; a remote Host
// implementation executes through this manager.
type ConnManager struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	addr    string
	breaker *resilience.Breaker
}

// Dial connects to the execution host service. Interceptors, when
// given, wrap every unary call (trace propagation).
func Dial(addr string, interceptors ...grpc.UnaryClientInterceptor) (*ConnManager, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                60 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: false,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(10*1024*1024),
			grpc.MaxCallSendMsgSize(10*1024*1024),
		),
	}
	if len(interceptors) > 0 {
		opts = append(opts, grpc.WithChainUnaryInterceptor(interceptors...))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial host: %w", err)
	}

	breaker := resilience.New("host", resilience.Settings{
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.5)
		},
	})

	return &ConnManager{
		conn:    conn,
		health:  healthpb.NewHealthClient(conn),
		addr:    addr,
		breaker: breaker,
	}, nil
}

// Close tears the connection down.
func (m *ConnManager) Close() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// Addr returns the dialed address.
func (m *ConnManager) Addr() string { return m.addr }

// Execute runs one host RPC through the circuit breaker.
func (m *ConnManager) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := m.breaker.Execute(fn)
	if err == resilience.ErrCircuitOpen {
		return nil, fmt.Errorf("%w: circuit breaker open", ErrUnavailable)
	}
	return result, err
}

// Check runs one unary health check through the circuit breaker. A
// non-serving status counts as a failure toward tripping it.
func (m *ConnManager) Check(ctx context.Context) error {
	_, err := m.Execute(func() (interface{}, error) {
		resp, err := m.health.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return nil, err
		}
		if resp.Status != healthpb.HealthCheckResponse_SERVING {
			return nil, fmt.Errorf("%w: health status %s", ErrUnavailable, resp.Status)
		}
		return resp, nil
	})
	return err
}

// WaitReady blocks until the connection is Ready or ctx expires.
func (m *ConnManager) WaitReady(ctx context.Context) error {
	for {
		s := m.conn.GetState()
		if s == connectivity.Ready {
			return nil
		}
		m.conn.Connect()
		if !m.conn.WaitForStateChange(ctx, s) {
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
	}
}

// WatchHealth streams serving-state changes until ctx is cancelled,
// reporting each transition to onChange.
func (m *ConnManager) WatchHealth(ctx context.Context, onChange func(serving bool)) error {
	stream, err := m.health.Watch(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health watch failed: %w", err)
	}
	for {
		resp, err := stream.Recv()
		if err != nil {
			return err
		}
		onChange(resp.Status == healthpb.HealthCheckResponse_SERVING)
	}
}
