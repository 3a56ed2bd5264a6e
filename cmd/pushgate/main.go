package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/chainreact/pushgate/internal/analytics"
	"github.com/chainreact/pushgate/internal/config"
	"github.com/chainreact/pushgate/internal/dedup"
	"github.com/chainreact/pushgate/internal/dispatcher"
	"github.com/chainreact/pushgate/internal/filter"
	"github.com/chainreact/pushgate/internal/ingress"
	"github.com/chainreact/pushgate/internal/janitor"
	"github.com/chainreact/pushgate/internal/metrics"
	"github.com/chainreact/pushgate/internal/pipeline"
	"github.com/chainreact/pushgate/internal/projector"
	"github.com/chainreact/pushgate/internal/provider"
	"github.com/chainreact/pushgate/internal/resolver"
	"github.com/chainreact/pushgate/internal/store/postgres"
	"github.com/chainreact/pushgate/internal/token"

	_ "github.com/lib/pq"
)

// providerName is the provider family this deployment serves. Trigger rows
// are scoped by provider so a second family can share the schema later.
const providerName = "microsoft"

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`pushgate - inbound push-notification dispatch engine

Usage:
  pushgate <command>

Commands:
  serve      Start the notification ingress server
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  EXECUTION_API_URL         Workflow execution API base URL (required)
  TOKEN_API_URL             OAuth token service base URL (required)
  REDIS_ADDR                Redis address for analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080", PORT honored)
  PROVIDER_BASE_URL         Provider API base URL (default: Microsoft Graph v1.0)

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  FETCH_TIMEOUT             Provider resource fetch timeout (default: "10s")
  DISPATCH_TIMEOUT          Execution API request timeout (default: "30s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  JANITOR_ENABLED           Enable retention sweeps (default: "false")
  JANITOR_SCHEDULE          Sweep cron expression (default: "0 * * * *")
  JANITOR_BATCH_SIZE        Max rows deleted per table per sweep (default: "500")
  DEDUP_RETENTION           Processed-notification retention (default: "720h")
  TEST_SESSION_TTL          Test session listening lifetime (default: "10m")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("pushgate: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db, cfg.DBOpTimeout)

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("pushgate: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("pushgate: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("pushgate: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("pushgate: METRICS_ENABLED not set; metrics disabled")
	}

	// Provider access: token client feeds the resource fetcher.
	tokens := token.NewClient(cfg.TokenAPIURL)
	prov := provider.NewClient(cfg.ProviderBaseURL, providerName, tokens, cfg.FetchTimeout)

	res := resolver.New(store, providerName)

	guard := dedup.NewGuard(store)
	if metricsSink != nil {
		guard = guard.WithMetrics(metricsSink)
	}

	engine := filter.New(prov, store)
	if metricsSink != nil {
		engine = engine.WithMetrics(metricsSink)
	}

	proj := projector.New(store)
	if metricsSink != nil {
		proj = proj.WithMetrics(metricsSink)
	}

	sender := dispatcher.NewHTTPExecutionSender(cfg.ExecutionAPIURL, cfg.DispatchTimeout)
	disp := dispatcher.New(store, sender)
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient)
		disp = disp.WithAnalytics(sink)
		log.Printf("pushgate: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("pushgate: REDIS_ADDR not set; analytics disabled")
	}

	pipe := pipeline.New(res, guard, engine, proj, disp)
	if metricsSink != nil {
		pipe = pipe.WithMetrics(metricsSink)
	}

	handler := ingress.NewHandler(pipe, store).WithHealthChecker(store)
	if metricsSink != nil {
		handler = handler.WithMetrics(metricsSink)
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	go func() {
		log.Printf("pushgate: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("pushgate: http server error: %v", err)
		}
	}()

	// Start janitor if enabled
	var janitorWg sync.WaitGroup
	var cancelJanitor context.CancelFunc

	if cfg.JanitorEnabled {
		jan, err := janitor.New(janitor.Config{
			Schedule:          cfg.JanitorSchedule,
			DedupRetention:    cfg.DedupRetention,
			ScheduleRetention: janitor.DefaultConfig().ScheduleRetention,
			SessionTTL:        cfg.TestSessionTTL,
			BatchSize:         cfg.JanitorBatchSize,
		}, store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid janitor schedule: %v\n", err)
			return exitInvalidConfig
		}
		if metricsSink != nil {
			jan = jan.WithMetrics(metricsSink)
		}

		var janitorCtx context.Context
		janitorCtx, cancelJanitor = context.WithCancel(context.Background())
		janitorWg.Add(1)
		go func() {
			defer janitorWg.Done()
			jan.Run(janitorCtx)
		}()
	} else {
		log.Println("pushgate: JANITOR_ENABLED not set; retention sweeps disabled")
	}

	log.Printf("pushgate: started (http=%s, provider=%s)", cfg.HTTPAddr, providerName)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("pushgate: received signal %v, shutting down", received)

	// Phase 1: Stop the HTTP server. In-flight batches finish within the
	// shutdown timeout; the provider redelivers anything we refuse after.
	log.Println("pushgate: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("pushgate: http server shutdown error: %v", err)
	}
	log.Println("pushgate: http server stopped")

	// Phase 2: Stop the janitor
	if cancelJanitor != nil {
		log.Println("pushgate: stopping janitor...")
		cancelJanitor()
		janitorWg.Wait()
		log.Println("pushgate: janitor stopped")
	}

	// Phase 3: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("pushgate: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("pushgate: metrics server shutdown error: %v", err)
		}
		log.Println("pushgate: metrics server stopped")
	}

	log.Println("pushgate: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("pushgate version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
