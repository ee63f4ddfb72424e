// Command gastronomy-loadtest measures token validation, refresh rotation and
// rate-limit throughput against an in-memory database and Redis (miniredis
// when no address is given).
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mathrand "math/rand/v2"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/accounts"
	"github.com/nmezhenskyi/gastronomy-api/internal/rate"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
	"github.com/nmezhenskyi/gastronomy-api/principal"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

type options struct {
	users       int
	concurrency int
	ops         int
	clients     int
	redisAddr   string
}

// userState serializes rotation of one user's refresh token.
type userState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:          "gastronomy-loadtest",
		Short:        "Load test token validation, refresh rotation and rate limiting",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.users, "users", 200, "number of users to register")
	f.IntVar(&opts.concurrency, "concurrency", 32, "number of concurrent workers")
	f.IntVar(&opts.ops, "ops", 20000, "operations per phase")
	f.IntVar(&opts.clients, "clients", 1000, "distinct client addresses in the rate-limit phase")
	f.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; miniredis when empty")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.clients <= 0 {
		return errors.New("users, concurrency, ops and clients must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	engine, cleanup, err := newEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("registering %d users...\n", opts.users)
	startSeed := time.Now()
	states := make([]userState, opts.users)
	for i := range states {
		s, err := engine.RegisterUser(ctx, gastronomy.RegisterUserInput{
			Name:     fmt.Sprintf("Load %d", i),
			Email:    fmt.Sprintf("load-%d@example.com", i),
			Password: "load-test-password",
		})
		if err != nil {
			return fmt.Errorf("register user %d: %w", i, err)
		}
		states[i].access = s.Tokens.AccessToken
		states[i].refresh = s.Tokens.RefreshToken
	}
	fmt.Printf("registered in %s\n", time.Since(startSeed).Round(time.Millisecond))

	limiter, closeRedis, err := newLimiter(opts.redisAddr)
	if err != nil {
		return err
	}
	defer closeRedis()

	validateStats := runPhase(opts, func(r *mathrand.Rand, _ int) bool {
		st := &states[r.IntN(len(states))]
		st.mu.Lock()
		token := st.access
		st.mu.Unlock()
		_, ok := engine.ValidateAccessToken(token)
		return ok
	})
	refreshStats := runPhase(opts, func(r *mathrand.Rand, _ int) bool {
		st := &states[r.IntN(len(states))]
		st.mu.Lock()
		defer st.mu.Unlock()
		pair, err := engine.Refresh(ctx, principal.KindUser, st.refresh)
		if err != nil {
			return false
		}
		st.access, st.refresh = pair.AccessToken, pair.RefreshToken
		return true
	})
	var limited atomic.Int64
	rateStats := runPhase(opts, func(r *mathrand.Rand, _ int) bool {
		err := limiter.Allow(ctx, fmt.Sprintf("198.51.100.%d", r.IntN(opts.clients)))
		if errors.Is(err, rate.ErrRateLimited) {
			limited.Add(1)
			return true
		}
		return err == nil
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	printStats("rate-limit", rateStats)
	fmt.Printf("rate-limit: rejected=%d\n", limited.Load())
	return nil
}

func newEngine() (*gastronomy.Engine, func(), error) {
	db, err := storage.Open(storage.Config{
		Dialect:      storage.DialectSQLite,
		Datasource:   "file:loadtest?mode=memory&cache=shared&_fk=1",
		MaxOpenConns: 1,
	})
	if err != nil {
		return nil, nil, err
	}
	models := append(accounts.Models(), &session.RefreshToken{})
	if err := storage.Migrate(db, models...); err != nil {
		return nil, nil, err
	}

	cfg := gastronomy.DefaultConfig()
	cfg.JWT.AccessSecret = randomSecret()
	cfg.JWT.RefreshSecret = randomSecret()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Audit.Enabled = false

	engine, err := gastronomy.New().
		WithConfig(cfg).
		WithDB(db).
		WithAccountProvider(accounts.NewStore(db)).
		WithLogger(zap.NewNop()).
		Build()
	if err != nil {
		_ = storage.Close(db)
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		_ = storage.Close(db)
	}, nil
}

func newLimiter(addr string) (*rate.Limiter, func(), error) {
	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	limiter, err := rate.New(rate.NewRedisStore(client), rate.Config{
		Limit:     rate.ProductionLimit,
		KeyPrefix: "loadtest:",
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return limiter, cleanup, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// runPhase runs ops calls of op across the configured workers and records
// per-call latency. op reports success.
func runPhase(opts options, op func(r *mathrand.Rand, i int) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mathrand.New(mathrand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)*7919))
			for {
				i := int(cursor.Add(1)) - 1
				if i >= opts.ops {
					return
				}
				t0 := time.Now()
				ok := op(r, i)
				d := time.Since(t0)
				if !ok {
					failures.Add(1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
