// Command server boots the payment orchestration gateway: it wires
// configuration, the relational/object/cache stores, the rail
// registry, every pipeline agent, the orchestrator, and the HTTP+WS API,
// then serves until interrupted. Wiring style (load config, construct
// collaborators, build a mux.Router, serve with graceful shutdown on
// SIGINT/SIGTERM) follows the teacher's original server bootstrap.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auditlog"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/auth"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/compliance"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/config"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/crrak"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/domain"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/httpapi"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/orchestrator"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/railexec"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/railregistry"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/reconciliation"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/rootcause"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/scoring"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/store"
	"github.com/swaroop-thakare/new-repo-gateway-sub000/internal/wsstatus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relStore, closeStore := buildRelationalStore(ctx, cfg)
	defer closeStore()

	encryptor := store.NewEncryptor(cfg.Encryption.MasterKey)
	objStore := store.NewMemoryObjectStore(encryptor)

	redisCache := store.NewRedisCache(
		fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	var limiter railregistry.DailyLimiter = redisCache
	if err := redisCache.Ping(ctx); err != nil {
		log.Printf("[server] redis unavailable, rail daily limits fall back to in-memory comparison: %v", err)
		limiter = nil
	}

	rails := railregistry.NewRegistry(relStore, limiter)
	if err := rails.Seed(ctx, defaultRailConfigs()); err != nil {
		log.Fatalf("seed rail registry: %v", err)
	}
	if err := rails.StartDailyReset(ctx); err != nil {
		log.Printf("[server] daily reset scheduler not started: %v", err)
	}
	defer rails.Stop()

	audit := auditlog.New(relStore)

	executor := railexec.New(cfg.Rails.SeedDeterministic, cfg.Rails.Seed, nil)
	cascade := scoring.NewCascade(executor, relStore, rails)

	accEvaluator := compliance.NewEvaluator(cfg.PolicyEvaluator.URL, "v1", cfg.PolicyEvaluator.Timeout, relStore)
	reconciler := reconciliation.NewReconciler(relStore)
	rca := rootcause.NewAnalyzer(relStore)
	composer := crrak.NewComposer(relStore, objStore)

	statusHub := wsstatus.NewHub()

	jwtSecret := []byte(cfg.JWT.Secret)
	if len(jwtSecret) == 0 {
		jwtSecret = []byte("development-only-secret-do-not-use-in-production")
		log.Println("[server] JWT_SECRET not set, using an insecure development default")
	}

	orch := orchestrator.New(orchestrator.Deps{
		RelStore:  relStore,
		ObjStore:  objStore,
		Audit:     audit,
		Rails:     rails,
		ACC:       accEvaluator,
		Cascade:   cascade,
		ARL:       reconciler,
		RCA:       rca,
		CRRAK:     composer,
		Cfg:       cfg.Orchestrator,
		JWTSecret: jwtSecret,
		Tenant:    "default",
		StatusHub: statusHub,
	})

	operators := seedOperators()

	server := httpapi.NewServer(orch, relStore, "default", jwtSecret, operators, statusHub)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("[server] listening on :%s (env=%s)", cfg.Port, cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("[server] shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] graceful shutdown failed: %v", err)
	}
}

func buildRelationalStore(ctx context.Context, cfg *config.Config) (store.RelationalStore, func()) {
	if cfg.Database.Host == "" || os.Getenv("STORE_BACKEND") == "memory" {
		log.Println("[server] using in-memory relational store")
		return store.NewMemoryRelationalStore(), func() {}
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name, cfg.Database.SSLMode)
	pg, err := store.NewPostgresRelationalStore(ctx, dsn)
	if err != nil {
		log.Printf("[server] postgres unavailable (%v), falling back to in-memory relational store", err)
		return store.NewMemoryRelationalStore(), func() {}
	}
	return pg, pg.Close
}

func seedOperators() map[string]auth.Operator {
	hash, err := auth.HashPassword("changeme")
	if err != nil {
		log.Fatalf("seed operators: %v", err)
	}
	return map[string]auth.Operator{
		"admin": {ID: "op_admin", Username: "admin", PasswordHash: hash, Role: "admin"},
	}
}

// defaultRailConfigs seeds the five settlement rails of spec.md §3/§4.5:
// two instant dialects (UPI, IMPS), one deferred-net-settlement batch
// rail (NEFT), one high-value gross-settlement rail with a working-hours
// cutoff (RTGS), and intra-bank transfer.
func defaultRailConfigs() []domain.RailConfig {
	allDays := map[int]bool{}
	weekdays := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
	_ = allDays

	mustAmount := func(s string) domain.Amount {
		a, err := domain.NewAmount(s)
		if err != nil {
			log.Fatalf("seed rail amount %q: %v", s, err)
		}
		return a
	}

	return []domain.RailConfig{
		{
			RailName: "UPI", RailType: domain.RailInstant,
			MinAmount: mustAmount("1.00"), MaxAmount: mustAmount("100000.00"), NewUserLimit: mustAmount("5000.00"),
			WorkingHours:        domain.WorkingHours{Start: 0, End: 24*60 - 1},
			AvgETAMs:             3000, CostBps: 0, SuccessProbability: 0.98,
			SettlementType:       "INSTANT", SettlementCertainty: 0.97,
			DailyLimit:           mustAmount("10000000.00"), DailyLimitRemaining: mustAmount("10000000.00"),
			IsActive:             true,
		},
		{
			RailName: "IMPS", RailType: domain.RailInstant,
			MinAmount: mustAmount("1.00"), MaxAmount: mustAmount("500000.00"), NewUserLimit: mustAmount("25000.00"),
			WorkingHours:        domain.WorkingHours{Start: 0, End: 24*60 - 1},
			AvgETAMs:             5000, CostBps: 2, SuccessProbability: 0.97,
			SettlementType:       "INSTANT", SettlementCertainty: 0.96,
			DailyLimit:           mustAmount("20000000.00"), DailyLimitRemaining: mustAmount("20000000.00"),
			IsActive:             true,
		},
		{
			RailName: "NEFT", RailType: domain.RailBatchType,
			MinAmount: mustAmount("1.00"), MaxAmount: mustAmount("1000000000.00"), NewUserLimit: mustAmount("50000.00"),
			WorkingHours:        domain.WorkingHours{Start: 0, End: 24*60 - 1},
			AvgETAMs:             1_800_000, CostBps: 1, SuccessProbability: 0.99,
			SettlementType:       "BATCH", SettlementCertainty: 0.99,
			DailyLimit:           mustAmount("50000000.00"), DailyLimitRemaining: mustAmount("50000000.00"),
			IsActive:             true,
		},
		{
			RailName: "RTGS", RailType: domain.RailRealtime,
			MinAmount: mustAmount("200000.00"), MaxAmount: mustAmount("1000000000.00"), NewUserLimit: mustAmount("200000.00"),
			WorkingHours:         domain.WorkingHours{Start: 9 * 60, End: 16*60 + 30, Weekdays: toWeekdays(weekdays)},
			AvgETAMs:              600_000, CostBps: 3, SuccessProbability: 0.995,
			SettlementType:        "GROSS_SETTLEMENT", SettlementCertainty: 0.995,
			DailyLimit:            mustAmount("500000000.00"), DailyLimitRemaining: mustAmount("500000000.00"),
			IsActive:              true,
		},
		{
			RailName: "INTRABANK", RailType: domain.RailIntrabank,
			MinAmount: mustAmount("1.00"), MaxAmount: mustAmount("1000000000.00"), NewUserLimit: mustAmount("100000.00"),
			WorkingHours:        domain.WorkingHours{Start: 0, End: 24*60 - 1},
			AvgETAMs:             500, CostBps: 0, SuccessProbability: 0.999,
			SettlementType:       "INSTANT", SettlementCertainty: 0.999,
			DailyLimit:           mustAmount("1000000000.00"), DailyLimitRemaining: mustAmount("1000000000.00"),
			IsActive:             true,
		},
	}
}

func toWeekdays(days map[int]bool) map[time.Weekday]bool {
	out := make(map[time.Weekday]bool, len(days))
	for d, ok := range days {
		out[time.Weekday(d)] = ok
	}
	return out
}
