package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/leadgate/internal/datanorm"
	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/pkg/logger"
)

// Pipeline names the stages of a Gate. Nil stages are skipped; the run
// order is fixed regardless of how the struct is filled.
type Pipeline struct {
	Captcha      Stage
	Request      Stage
	Antibot      Stage
	Quality      Stage
	Admission    Stage
	Dedup        Stage
	MX           Stage
	Verification Stage
	Risk         Stage
}

func (p Pipeline) stages() []Stage {
	var out []Stage
	for _, s := range []Stage{p.Captcha, p.Request, p.Antibot, p.Quality, p.Admission, p.Dedup, p.MX, p.Verification, p.Risk} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Options configures a Gate.
type Options struct {
	Pipeline  Pipeline
	Policy    Policy
	Dedup     DedupStore
	DedupTTL  time.Duration
	Analytics AnalyticsRecorder
	Log       OutcomeLog
	Observer  Observer
	Effects   Effects
}

// Gate runs the pipeline and owns everything that happens after the decision.
type Gate struct {
	stages    []Stage
	policy    Policy
	dedup     DedupStore
	dedupTTL  time.Duration
	analytics AnalyticsRecorder
	log       OutcomeLog
	observer  Observer
	effects   Effects

	now   func() time.Time
	newID func() string
	wg    sync.WaitGroup
}

// NewGate assembles a gate.
func NewGate(opts Options) *Gate {
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 24 * time.Hour
	}
	if opts.Effects.Timeout <= 0 {
		opts.Effects.Timeout = 10 * time.Second
	}
	return &Gate{
		stages:    opts.Pipeline.stages(),
		policy:    opts.Policy,
		dedup:     opts.Dedup,
		dedupTTL:  opts.DedupTTL,
		analytics: opts.Analytics,
		log:       opts.Log,
		observer:  opts.Observer,
		effects:   opts.Effects,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Decide returns exactly one outcome for the submission. It never returns
// an error: dependency failures are resolved by the policy.
func (g *Gate) Decide(ctx context.Context, sub lead.Submission) lead.Outcome {
	start := time.Now()
	ev := NewEvaluation(sub, g.now())

	var reason *lead.Reason
	for _, st := range g.stages {
		if reason = g.run(ctx, st, ev); reason != nil {
			logger.Info("lead rejected",
				"stage", st.Name(),
				"reason", reason.String(),
				"phone", ev.Phone,
				"ip", sub.ClientIP,
				"placement", sub.UTM.Placement().Key(),
			)
			break
		}
	}
	if reason == nil {
		reason = g.claim(ctx, ev)
	}

	var out lead.Outcome
	if reason != nil {
		out = lead.Reject(*reason, ev.Score(), ev.Warnings(), ev.Annotations(), ev.PhoneInfo(), time.Since(start))
	} else {
		out = lead.Accept(g.newID(), ev.Score(), ev.Warnings(), ev.Annotations(), ev.PhoneInfo(), time.Since(start))
		logger.Info("lead accepted", "lead_id", out.LeadID, "phone", ev.Phone, "risk_score", out.RiskScore)
	}

	g.record(ctx, ev, out)
	if out.Accepted {
		g.dispatch(ev, out)
	}
	return out
}

// Drain blocks until every side effect started so far has finished.
func (g *Gate) Drain() {
	g.wg.Wait()
}

// run executes one stage, converting a panic into the stage's fail policy.
func (g *Gate) run(ctx context.Context, st Stage, ev *Evaluation) (reason *lead.Reason) {
	defer func() {
		if rec := recover(); rec != nil {
			dep, closed := stageFailure(st.Name())
			reason = unavailable(ev, dep, g.policy.Mode(dep), "", closed, fmt.Errorf("stage %s panicked: %v", st.Name(), rec))
		}
	}()
	return st.Check(ctx, ev)
}

func stageFailure(name string) (Dependency, *lead.Reason) {
	switch name {
	case "captcha":
		return DepCaptcha, lead.NewReason(lead.CodeCaptchaFailed)
	case "admission":
		return DepRateLimit, lead.NewReason(lead.CodeRateLimitExceeded)
	case "dedup":
		return DepDedup, lead.NewReason(lead.CodeDuplicatePhone)
	case "mx":
		return DepMX, lead.NewReason(lead.CodeEmailNoMX)
	case "verification":
		return DepVerification, lead.NewReason(lead.CodeVerificationUnavailable)
	default:
		return Dependency(name), nil
	}
}

// claim marks the identities of a lead that passed every stage. Losing the
// claim to a concurrent submission turns the acceptance into a duplicate;
// a store failure is resolved by the dedup policy.
func (g *Gate) claim(ctx context.Context, ev *Evaluation) *lead.Reason {
	if g.dedup == nil {
		return nil
	}
	conflict, err := g.dedup.Claim(ctx, identities(ev), g.dedupTTL)
	if err != nil {
		return unavailable(ev, DepDedup, g.policy.Dedup, lead.AnnotationStoreUnavailable,
			lead.NewReason(lead.CodeDuplicatePhone), fmt.Errorf("claim: %w", err))
	}
	if conflict != "" {
		return duplicateReason(conflict)
	}
	return nil
}

func (g *Gate) record(ctx context.Context, ev *Evaluation, out lead.Outcome) {
	ctx = context.WithoutCancel(ctx)
	if g.analytics != nil {
		if err := g.analytics.Record(ctx, ev.Submission.UTM.Placement(), !out.Accepted, out.ReasonString()); err != nil {
			ev.failed = append(ev.failed, DepAnalytics)
			logger.Warn("analytics record failed", "error", err)
		}
	}
	if g.observer != nil {
		g.observer.Decision(out)
		for _, dep := range ev.Failed() {
			g.observer.DependencyFailed(string(dep))
		}
	}
	if g.log != nil {
		sub, at := ev.Submission, ev.Now
		g.background("outcome_log", func(ctx context.Context) error {
			return g.log.Log(ctx, sub, out, at)
		})
	}
}

// dispatch starts the post-acceptance side effects. None of them can
// change the outcome already returned.
func (g *Gate) dispatch(ev *Evaluation, out lead.Outcome) {
	sub := ev.Submission
	accepted := lead.Accepted{
		LeadID:     out.LeadID,
		Phone:      ev.Phone,
		Email:      ev.Email,
		Name:       datanorm.NormalizeName(sub.Name),
		UTM:        sub.UTM,
		ClientID:   sub.ClientID,
		PhoneInfo:  out.Phone,
		RiskScore:  out.RiskScore,
		Warnings:   out.Warnings,
		AcceptedAt: ev.Now.UTC(),
	}

	if n := g.effects.Notifier; n != nil {
		g.background("notify", func(ctx context.Context) error {
			return n.NewLead(ctx, accepted)
		})
	}
	if x := g.effects.Exporter; x != nil {
		crm := g.effects.CRM
		g.background("export", func(ctx context.Context) error {
			l := accepted
			if crm != nil {
				id, err := crm.FindContact(ctx, l.Phone, l.Email)
				if err != nil {
					logger.Warn("crm lookup failed, exporting without contact", "lead_id", l.LeadID, "error", err)
				}
				l.CRMContactID = id
			}
			return x.Export(ctx, l)
		})
	}
	if c := g.effects.Conversion; c != nil && sub.ClientID != "" {
		g.background("conversion", func(ctx context.Context) error {
			return c.QualityLead(ctx, sub.ClientID, accepted.AcceptedAt)
		})
	}
}

// background runs fn detached from the request with its own timeout.
func (g *Gate) background(name string, fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("side effect panicked", "effect", name, "panic", rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), g.effects.Timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Warn("side effect failed", "effect", name, "error", err)
			if g.observer != nil {
				g.observer.DependencyFailed(name)
			}
		}
	}()
}
