package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	kratoslog "github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"headless-pro/pkg/config"
)

type fakeServer struct {
	name     string
	startErr error
	mu       *sync.Mutex
	events   *[]string
}

func (f *fakeServer) Name() string { return f.name }

func (f *fakeServer) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.events = append(*f.events, "start:"+f.name)
	return f.startErr
}

func (f *fakeServer) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.events = append(*f.events, "stop:"+f.name)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = config.EnvProduction
	cfg.Server.HTTP.Addr = "127.0.0.1:0"
	cfg.Server.GRPC.Addr = "127.0.0.1:0"
	return cfg
}

func TestServerManagerStopsStartedOnFailure(t *testing.T) {
	var mu sync.Mutex
	var events []string
	sm := NewServerManager(testConfig(), kratoslog.DefaultLogger)
	sm.AddServer(&fakeServer{name: "a", mu: &mu, events: &events})
	sm.AddServer(&fakeServer{name: "b", startErr: errors.New("port in use"), mu: &mu, events: &events})
	sm.AddServer(&fakeServer{name: "c", mu: &mu, events: &events})

	err := sm.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b server")
	assert.Equal(t, []string{"start:a", "start:b", "stop:a"}, events)
}

func TestServerManagerRegisterWithoutServer(t *testing.T) {
	sm := NewServerManager(testConfig(), kratoslog.DefaultLogger)
	assert.Error(t, sm.RegisterGRPCService(func(*grpc.Server) {}))
}

func TestHealthEndpoint(t *testing.T) {
	engine := NewGinEngine(false)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestGRPCHealthService(t *testing.T) {
	srv := NewGRPCServerWrapper(testConfig(), kratoslog.DefaultLogger)
	require.NoError(t, srv.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	}()

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
