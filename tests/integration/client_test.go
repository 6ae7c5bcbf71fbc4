//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/ipintel-client/internal/testutil"
	"github.com/Sternrassler/ipintel-client/pkg/batch"
	"github.com/Sternrassler/ipintel-client/pkg/cache"
	"github.com/Sternrassler/ipintel-client/pkg/client"
	"github.com/Sternrassler/ipintel-client/pkg/credential"
	"github.com/Sternrassler/ipintel-client/pkg/report"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// cachedFactory builds API clients against mock and wraps them in the report cache.
func cachedFactory(mock *testutil.MockAPI, manager *cache.Manager) batch.LookuperFactory {
	direct := batch.ClientFactory(client.Config{BaseURL: mock.URL(), Timeout: 5 * time.Second})
	return func(apiKey string) (client.Lookuper, error) {
		l, err := direct(apiKey)
		if err != nil {
			return nil, err
		}
		return cache.NewLookuper(l, manager, time.Minute), nil
	}
}

// TestBatchWithReportCache runs the same batch twice through the Redis cache:
// the second run is served from Redis except for the failed target.
func TestBatchWithReportCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetIPResponse("bad-ip", testutil.NewBadRequestResponse())

	manager := cache.NewManager(redisClient)
	exec := batch.NewExecutor(cachedFactory(mock, manager), batch.Config{MaxConcurrency: 4})
	targets := []string{"8.8.8.8", "1.1.1.1", "9.9.9.9", "bad-ip"}

	for run := 1; run <= 2; run++ {
		collector := report.NewCollector()
		summary, err := exec.Execute(context.Background(), batch.Request{Targets: targets, Credential: "k"}, collector, nil)
		if err != nil {
			t.Fatalf("run %d: Execute failed: %v", run, err)
		}
		if summary.Succeeded != 3 || summary.Failed != 1 {
			t.Errorf("run %d: summary = %+v", run, summary)
		}
		if len(collector.Rows()) != 3 {
			t.Errorf("run %d: %d rows, want 3", run, len(collector.Rows()))
		}
	}

	for _, ip := range []string{"8.8.8.8", "1.1.1.1", "9.9.9.9"} {
		if hits := mock.Hits(ip); hits != 1 {
			t.Errorf("%s requested %d times, want 1 (second run cached)", ip, hits)
		}
	}
	if hits := mock.Hits("bad-ip"); hits != 2 {
		t.Errorf("bad-ip requested %d times, want 2 (failures are not cached)", hits)
	}

	key := cache.CacheKey{Endpoint: client.EndpointIPReport, Target: "8.8.8.8"}
	ttl, err := redisClient.TTL(context.Background(), key.String()).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("redis TTL = %v, want within (0, 1m]", ttl)
	}
}

// TestCoordinatorSupersedeWithCache starts a slow batch, supersedes it and
// checks both runs ended cleanly with their own completion events.
func TestCoordinatorSupersedeWithCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		mock.SetIPResponse(ip, testutil.NewSlowResponse(ip, 5*time.Second))
	}

	exec := batch.NewExecutor(cachedFactory(mock, cache.NewManager(redisClient)), batch.Config{MaxConcurrency: 2})
	coord := batch.NewCoordinator(exec, credential.Static("k"))
	defer coord.Shutdown()

	var mu sync.Mutex
	completes := map[string]int{}
	sinkFor := func(name string) batch.Sink {
		return batch.SinkFuncs{Complete: func() {
			mu.Lock()
			completes[name]++
			mu.Unlock()
		}}
	}

	first, err := coord.Start(context.Background(), []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"}, sinkFor("first"))
	if err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	second, err := coord.Start(context.Background(), []string{"8.8.8.8"}, sinkFor("second"))
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	if s := first.Wait(); !s.Canceled {
		t.Errorf("first summary = %+v, want canceled", s)
	}
	if s := second.Wait(); s.Succeeded != 1 {
		t.Errorf("second summary = %+v", s)
	}

	mu.Lock()
	defer mu.Unlock()
	if completes["first"] != 1 || completes["second"] != 1 {
		t.Errorf("completion events = %v, want one each", completes)
	}
}
