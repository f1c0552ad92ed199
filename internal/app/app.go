// Package app assembles the gate, the HTTP handlers and the scheduled jobs
// from a validated configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/leadgate/internal/analytics"
	"github.com/ignite/leadgate/internal/api"
	"github.com/ignite/leadgate/internal/blacklist"
	"github.com/ignite/leadgate/internal/captcha"
	"github.com/ignite/leadgate/internal/config"
	"github.com/ignite/leadgate/internal/crm"
	"github.com/ignite/leadgate/internal/dadata"
	"github.com/ignite/leadgate/internal/export"
	"github.com/ignite/leadgate/internal/intake"
	"github.com/ignite/leadgate/internal/leadlog"
	"github.com/ignite/leadgate/internal/metrica"
	"github.com/ignite/leadgate/internal/metrics"
	"github.com/ignite/leadgate/internal/notify"
	"github.com/ignite/leadgate/internal/pkg/awsutil"
	"github.com/ignite/leadgate/internal/pkg/distlock"
	"github.com/ignite/leadgate/internal/report"
	"github.com/ignite/leadgate/internal/store"
)

const jobLockTTL = 10 * time.Minute

// App holds the shared collaborators. Optional ones are nil when their
// section of the configuration is disabled.
type App struct {
	Config    *config.Config
	Redis     *redis.Client
	DB        *sql.DB
	Metrics   *metrics.Metrics
	Analytics *analytics.Aggregator
	Blacklist *store.Blacklist
	Outcomes  *leadlog.Repo
	Notifier  *notify.Notifier

	aws      *aws.Config
	verifier *dadata.Client
}

// New connects to the stores and builds the shared collaborators.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Metrics: metrics.New()}

	if cfg.Redis.Enabled() {
		client, err := store.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.Redis = client
		a.Blacklist = store.NewBlacklist(client)
		log.Println("[App] Redis connected")
	} else {
		log.Println("[App] Redis not configured: rate limit and dedup follow their fail policy")
	}

	var backend analytics.Backend = analytics.NewMemory()
	if cfg.Analytics.Backend == "redis" {
		backend = analytics.NewRedis(a.Redis)
	}
	a.Analytics = analytics.New(backend)

	if cfg.Database.Enabled() {
		db, err := leadlog.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.DB = db
		a.Outcomes = leadlog.NewRepo(db)
		log.Println("[App] Outcome log connected")
	}

	if cfg.Telegram.Enabled {
		templates, err := notify.NewTemplates(nil)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Notifier = notify.New(notify.NewTelegram(cfg.Telegram), templates)
	}

	if cfg.DaData.Enabled {
		a.verifier = dadata.NewClient(cfg.DaData)
	}

	if cfg.Export.Enabled || cfg.Report.S3Bucket != "" {
		awsCfg, err := awsutil.Load(ctx, cfg.AWS)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.aws = &awsCfg
	}
	return a, nil
}

// Gate builds the decision pipeline in its fixed stage order.
func (a *App) Gate() *intake.Gate {
	cfg := a.Config
	policy := intake.Policy{
		Captcha:      failMode(cfg.Policy.Captcha),
		RateLimit:    failMode(cfg.Policy.RateLimit),
		Dedup:        failMode(cfg.Policy.Dedup),
		MX:           failMode(cfg.Policy.MX),
		Verification: failMode(cfg.Policy.Verification),
	}

	p := intake.Pipeline{
		Request: intake.NewRequestStage(),
		Antibot: intake.NewAntibotStage(
			time.Duration(cfg.Antibot.MinFillSeconds)*time.Second,
			time.Duration(cfg.Antibot.MaxAgeSeconds)*time.Second,
		),
		Quality: intake.NewDataQualityStage(),
	}
	if cfg.Captcha.Enabled {
		p.Captcha = intake.NewCaptchaStage(captcha.New(cfg.Captcha), policy.Captcha)
	}
	if cfg.MX.Enabled {
		p.MX = intake.NewMXStage(nil, policy.MX, cfg.MX.Timeout())
	}

	// an empty chain fails every call, so an unconfigured provider goes
	// through the verification policy
	phones := intake.PhoneChain{}
	var emails intake.EmailVerifier
	if a.verifier != nil {
		phones = append(phones, a.verifier)
		if cfg.DaData.CheckEmail {
			emails = intake.EmailChain{a.verifier}
		}
	}
	p.Verification = intake.NewVerificationStage(phones, emails, policy.Verification, cfg.DaData.Timeout())

	rules := intake.RiskRules{
		DomesticSources:   cfg.Risk.DomesticSources,
		DomesticCountries: cfg.Risk.DomesticCountries,
		RejectScore:       cfg.Risk.RejectScore,
		WarnScore:         cfg.Risk.WarnScore,
	}
	opts := intake.Options{
		Policy:    policy,
		DedupTTL:  cfg.Dedup.TTL(),
		Analytics: a.Analytics,
		Observer:  a.Metrics,
		Effects:   a.effects(),
	}
	var (
		limiter   intake.RateLimiter
		dedup     intake.DedupStore
		blacklist intake.Blacklist
	)
	if a.Redis != nil {
		limiter = store.NewRateLimiter(a.Redis)
		dedup = store.NewDedupStore(a.Redis)
		blacklist = a.Blacklist
	} else {
		var none store.Unavailable
		limiter, dedup, blacklist = none, none, none
	}
	p.Admission = intake.NewAdmissionStage(limiter, policy.RateLimit,
		cfg.RateLimit.PerIP, cfg.RateLimit.PerPhone, cfg.RateLimit.Window())
	p.Dedup = intake.NewDedupStage(dedup, policy.Dedup)
	p.Risk = intake.NewRiskStage(blacklist, rules)
	opts.Dedup = dedup
	if a.Outcomes != nil {
		opts.Log = a.Outcomes
	}
	opts.Pipeline = p
	return intake.NewGate(opts)
}

func (a *App) effects() intake.Effects {
	cfg := a.Config
	var fx intake.Effects
	if a.Notifier != nil {
		fx.Notifier = a.Notifier
	}
	if cfg.CRM.Enabled {
		fx.CRM = crm.NewBitrix(cfg.CRM)
	}
	if cfg.Metrica.Enabled {
		fx.Conversion = metrica.NewClient(cfg.Metrica)
	}
	if cfg.Export.Enabled && a.aws != nil {
		fx.Exporter = export.NewPublisher(sqs.NewFromConfig(*a.aws), cfg.Export.QueueURL)
	}
	return fx
}

// Jobs are the scheduled background tasks.
type Jobs struct {
	Refresher  *blacklist.Refresher
	Reports    *report.Builder
	Dispatcher *report.Dispatcher
	Retention  *leadlog.RetentionWorker
}

// Jobs builds the scheduled tasks. Refresher is nil without Redis,
// Dispatcher without a notifier or with reports disabled, Retention
// without a database.
func (a *App) Jobs() *Jobs {
	cfg := a.Config
	j := &Jobs{}

	var entries report.Entries
	if a.Blacklist != nil {
		entries = a.Blacklist
	}
	j.Reports = report.NewBuilder(a.Analytics, entries, analytics.ReportOptions{
		TopN:             cfg.Report.TopN,
		MinLeads:         cfg.Blacklist.MinLeads,
		MinRejectionRate: cfg.Blacklist.RejectionRate,
	})

	if a.Blacklist != nil {
		opts := blacklist.Options{
			MinLeads:      cfg.Blacklist.MinLeads,
			RejectionRate: cfg.Blacklist.RejectionRate,
			TTL:           cfg.Blacklist.TTL(),
			Interval:      cfg.Blacklist.Interval(),
			Counter:       a.Metrics,
			Lock:          distlock.NewLock(a.Redis, a.DB, "leadgate:job:blacklist_refresh", jobLockTTL),
		}
		if a.Notifier != nil && cfg.Alerts.Enabled {
			opts.Alerter = a.Notifier
			opts.AlertMinLeads = cfg.Alerts.MinLeads
			opts.AlertRate = cfg.Alerts.RejectionRate
		}
		j.Refresher = blacklist.NewRefresher(a.Analytics, a.Blacklist, opts)
	}

	if cfg.Report.Enabled && a.Notifier != nil {
		opts := report.DispatcherOptions{
			Interval:           cfg.Report.Interval(),
			ResetAfterDispatch: cfg.Report.ResetAfterDispatch,
			Lock:               distlock.NewLock(a.Redis, a.DB, "leadgate:job:quality_report", jobLockTTL),
		}
		if cfg.Report.S3Bucket != "" && a.aws != nil {
			opts.Archive = report.NewS3Archive(awsutil.S3Client(*a.aws, cfg.AWS), cfg.Report.S3Bucket, cfg.Report.S3Prefix, 0)
		}
		j.Dispatcher = report.NewDispatcher(j.Reports, a.Notifier, opts)
	}

	if a.DB != nil {
		j.Retention = leadlog.NewRetentionWorker(a.DB, cfg.Database.RetentionDays)
	}
	return j
}

// Start launches every configured job in its own goroutine.
func (j *Jobs) Start(ctx context.Context) {
	if j.Refresher != nil {
		go j.Refresher.Start(ctx)
	}
	if j.Dispatcher != nil {
		go j.Dispatcher.Start(ctx)
	}
	if j.Retention != nil {
		go j.Retention.Start(ctx)
	}
}

// Handlers wires the HTTP handlers to gate and jobs.
func (a *App) Handlers(gate *intake.Gate, jobs *Jobs) *api.Handlers {
	deps := api.Deps{
		Gate:         gate,
		BlacklistTTL: a.Config.Blacklist.TTL(),
		Reports:      jobs.Reports,
		Health:       api.NewHealthChecker(a.DB, a.Redis),
		Metrics:      a.Metrics.Handler(),
	}
	if a.verifier != nil {
		deps.Phones = a.verifier
	}
	if a.Outcomes != nil {
		deps.Outcomes = a.Outcomes
	}
	if a.Blacklist != nil {
		deps.Blacklist = a.Blacklist
	}
	if jobs.Refresher != nil {
		deps.Refresher = jobs.Refresher
	}
	return api.NewHandlers(deps)
}

// Close releases the store connections.
func (a *App) Close() error {
	var firstErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			firstErr = fmt.Errorf("close redis: %w", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close postgres: %w", err)
		}
	}
	return firstErr
}

func failMode(v string) intake.FailMode {
	if config.IsClosed(v) {
		return intake.FailClosed
	}
	return intake.FailOpen
}
