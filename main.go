package main

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"deskpilot/audit"
	"deskpilot/config"
	"deskpilot/consent"
	"deskpilot/exec"
	"deskpilot/plan"
	"deskpilot/policy"
	"deskpilot/safety"
	"deskpilot/scheduler"
	"deskpilot/web"
)

func main() {
	_ = godotenv.Load()

	configPath := "deskpilot.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(serr.Wrap(err, "failed to load configuration"))
	}

	rules, err := policy.Compile(cfg.Policy.Rules)
	if err != nil {
		log.Fatal(serr.Wrap(err, "failed to compile guard rules"))
	}

	store, err := openAuditStore(cfg)
	if err != nil {
		log.Fatal(serr.Wrap(err, "failed to open audit store"))
	}

	auditLog, err := audit.NewLog(store)
	if err != nil {
		store.Close()
		log.Fatal(serr.Wrap(err, "failed to initialize audit log"))
	}

	kill := safety.NewKillSwitch()
	limiter := safety.NewRateLimiter(cfg.Safety.RateLimitPerMinute)
	validator := safety.NewValidator(kill, limiter, rules, safety.ValidatorConfig{
		ApprovalThreshold:          plan.RiskLevel(cfg.Safety.ApprovalThreshold),
		RequireSecondFactorForHigh: cfg.Safety.RequirePIN,
		SensitiveSettingPrefixes:   cfg.Safety.SensitivePrefixes,
	})

	pending := consent.NewPendingManager(time.Duration(cfg.Consent.TimeoutSeconds) * time.Second)
	consentCoord := consent.NewCoordinator(consent.Config{PINHash: cfg.Safety.PINHash})

	sched := scheduler.New(kill, scheduler.Options{
		MaxWorkers:  cfg.Scheduler.MaxWorkers,
		StepTimeout: time.Duration(cfg.Scheduler.StepTimeoutSeconds) * time.Second,
	})

	coord := exec.New(validator, consentCoord, sched, auditLog, limiter, exec.NewLoggingProvider())

	logger.Info("deskpilot starting",
		"address", cfg.Server.Address,
		"audit_backend", cfg.Audit.Backend,
		"rate_limit", cfg.Safety.RateLimitPerMinute)

	srv := web.NewServer(coord, pending, kill, auditLog)
	runErr := srv.Run(cfg.Server.Address)
	store.Close()
	log.Fatal(runErr)
}

func openAuditStore(cfg *config.Config) (audit.Store, error) {
	switch cfg.Audit.Backend {
	case "duckdb":
		return audit.OpenDuckDB(cfg.Audit.Path)
	default:
		return audit.OpenJSONL(cfg.Audit.Path)
	}
}
