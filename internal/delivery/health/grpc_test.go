package health

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestGRPCServerReportsServingStatus(t *testing.T) {
	srv, err := NewGRPCServer("127.0.0.1:0", zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewGRPCServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	check := func(want grpc_health_v1.HealthCheckResponse_ServingStatus) {
		t.Helper()
		callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer callCancel()
		resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("health check: %v", err)
		}
		if resp.GetStatus() != want {
			t.Fatalf("status %v, want %v", resp.GetStatus(), want)
		}
	}

	check(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	srv.SetServing(true)
	check(grpc_health_v1.HealthCheckResponse_SERVING)

	cancel()
	select {
	case err = <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
