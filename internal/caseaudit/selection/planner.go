package selection

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/clock"
	"github.com/smallbiznis/claimaudit/internal/config"
	"github.com/smallbiznis/claimaudit/internal/quarter"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const cancelCheckEvery = 1024

type Request struct {
	Quarter        quarter.Period
	Pool           []domain.CandidateCase
	PreLoadedCount int
	// Roster supplies owners for synthesized fillers. Only active users are used.
	Roster []reviewerdomain.User
	Policy config.AuditPolicy
}

type Result struct {
	Records []domain.CaseAuditRecord
	Quota   Quota
	// Synthesized counts fillers per origin.
	Synthesized map[domain.Origin]int
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	GenID  *snowflake.Node
	Config config.Config
}

// Planner draws quarterly batches. It is safe for concurrent use.
type Planner struct {
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node

	mu  sync.Mutex
	rng *rand.Rand
}

func New(p Params) *Planner {
	seed := uint64(p.Config.BatchSeed)
	if seed == 0 {
		seed = rand.Uint64()
	}
	return NewWithSource(p.Log, p.Clock, p.GenID, rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func NewWithSource(log *zap.Logger, clk clock.Clock, genID *snowflake.Node, src rand.Source) *Planner {
	return &Planner{
		log:   log.Named("caseaudit.selection"),
		clock: clk,
		genID: genID,
		rng:   rand.New(src),
	}
}

func (p *Planner) Plan(ctx context.Context, req Request) (Result, error) {
	if !req.Quarter.Valid() {
		return Result{}, quarter.ErrInvalidQuarterFormat
	}
	if req.PreLoadedCount < 0 {
		return Result{}, domain.ErrInvalidPreloaded
	}

	quota := ComputeQuota(req.PreLoadedCount)
	result := Result{Quota: quota, Synthesized: map[domain.Origin]int{}}
	if quota.Total == 0 {
		return result, nil
	}

	current, previous, err := partition(ctx, req.Quarter, req.Pool)
	if err != nil {
		return Result{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now().UTC()
	currentDraw := p.drawSpread(current, quota.Current)
	previousDraw := p.drawUniform(previous, quota.Previous)

	records := make([]domain.CaseAuditRecord, 0, quota.Total)
	for _, c := range currentDraw {
		records = append(records, materialize(c, req.Quarter, domain.OriginUserQuarterly, now))
	}
	for _, c := range previousDraw {
		records = append(records, materialize(c, req.Quarter, domain.OriginPreviousQuarterRandom, now))
	}

	fillers := []struct {
		origin  domain.Origin
		missing int
		period  quarter.Period
	}{
		{domain.OriginUserQuarterly, quota.Current - len(currentDraw), req.Quarter},
		{domain.OriginPreviousQuarterRandom, quota.Previous - len(previousDraw), req.Quarter.Previous()},
	}

	owners := activeOwners(req.Roster)
	rotation := 0
	for _, f := range fillers {
		if f.missing <= 0 {
			continue
		}
		if len(owners) == 0 || len(req.Policy.ClaimsStatuses) == 0 {
			p.log.Error("cannot synthesize filler cases",
				zap.String("quarter", req.Quarter.String()),
				zap.String("origin", string(f.origin)),
				zap.Int("missing", f.missing),
				zap.Int("active_users", len(owners)),
			)
			return Result{}, domain.ErrSelectionExhausted
		}
		for range f.missing {
			owner := owners[rotation%len(owners)]
			rotation++
			filler := p.synthesize(owner, f.period, req.Policy, now)
			records = append(records, materialize(filler, req.Quarter, f.origin, now))
			result.Synthesized[f.origin]++
		}
	}

	if len(records) != quota.Total {
		p.log.Error("batch does not match quota",
			zap.String("quarter", req.Quarter.String()),
			zap.Int("expected", quota.Total),
			zap.Int("actual", len(records)),
		)
		return Result{}, domain.ErrSelectionExhausted
	}

	result.Records = records
	p.log.Debug("batch planned",
		zap.String("quarter", req.Quarter.String()),
		zap.Int("pre_loaded", req.PreLoadedCount),
		zap.Int("current", quota.Current),
		zap.Int("previous", quota.Previous),
		zap.Int("synthesized", result.Synthesized[domain.OriginUserQuarterly]+result.Synthesized[domain.OriginPreviousQuarterRandom]),
	)
	return result, nil
}

// partition splits the pool by the quarter of each notification date and drops
// repeated case ids. Candidates outside both quarters are ignored.
func partition(ctx context.Context, q quarter.Period, pool []domain.CandidateCase) (current, previous []domain.CandidateCase, err error) {
	prev := q.Previous()
	seen := make(map[string]struct{}, len(pool))
	for i, c := range pool {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		if c.CaseID == "" {
			continue
		}
		if _, dup := seen[c.CaseID]; dup {
			continue
		}
		seen[c.CaseID] = struct{}{}

		switch quarter.FromDate(c.NotificationDate) {
		case q:
			current = append(current, c)
		case prev:
			previous = append(previous, c)
		}
	}
	return current, previous, nil
}

// drawSpread takes at most one case per owner before taking a second from anyone.
func (p *Planner) drawSpread(pool []domain.CandidateCase, need int) []domain.CandidateCase {
	if need <= 0 || len(pool) == 0 {
		return nil
	}
	shuffled := p.shuffled(pool)
	if len(shuffled) <= need {
		return shuffled
	}

	picked := make([]domain.CandidateCase, 0, need)
	rest := make([]domain.CandidateCase, 0, len(shuffled))
	owners := make(map[string]struct{})
	for _, c := range shuffled {
		if _, ok := owners[c.OwnerUserID]; ok || len(picked) == need {
			rest = append(rest, c)
			continue
		}
		owners[c.OwnerUserID] = struct{}{}
		picked = append(picked, c)
	}
	for _, c := range rest {
		if len(picked) == need {
			break
		}
		picked = append(picked, c)
	}
	return picked
}

func (p *Planner) drawUniform(pool []domain.CandidateCase, need int) []domain.CandidateCase {
	if need <= 0 || len(pool) == 0 {
		return nil
	}
	shuffled := p.shuffled(pool)
	if len(shuffled) > need {
		shuffled = shuffled[:need]
	}
	return shuffled
}

func (p *Planner) shuffled(pool []domain.CandidateCase) []domain.CandidateCase {
	out := make([]domain.CandidateCase, len(pool))
	copy(out, pool)
	p.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (p *Planner) synthesize(owner reviewerdomain.User, period quarter.Period, policy config.AuditPolicy, now time.Time) domain.CandidateCase {
	return domain.CandidateCase{
		CaseID:           fmt.Sprintf("SYN-%s", p.genID.Generate().String()),
		OwnerUserID:      owner.ID,
		CoverageAmount:   p.randomCoverage(owner.Role, policy.Limits),
		ClaimsStatus:     policy.ClaimsStatuses[p.rng.IntN(len(policy.ClaimsStatuses))],
		NotificationDate: period.Start(),
		CreatedAt:        now,
	}
}

// randomCoverage returns a whole-cent amount within the owner's ceiling.
// Unbounded roles use the specialist ceiling.
func (p *Planner) randomCoverage(role reviewerdomain.Role, limits reviewerdomain.RoleLimits) decimal.Decimal {
	limit, bounded := limits.Ceiling(role)
	if !bounded || !limit.IsPositive() {
		limit = limits.Specialist
	}
	cents := limit.Shift(2).IntPart()
	if cents <= 0 {
		return decimal.Zero
	}
	return decimal.New(p.rng.Int64N(cents+1), -2)
}

func activeOwners(roster []reviewerdomain.User) []reviewerdomain.User {
	owners := make([]reviewerdomain.User, 0, len(roster))
	for _, u := range roster {
		if u.Active() {
			owners = append(owners, u)
		}
	}
	return owners
}

func materialize(c domain.CandidateCase, q quarter.Period, origin domain.Origin, now time.Time) domain.CaseAuditRecord {
	return domain.CaseAuditRecord{
		ID:               c.CaseID,
		OwnerUserID:      c.OwnerUserID,
		CoverageAmount:   c.CoverageAmount,
		ClaimsStatus:     c.ClaimsStatus,
		Quarter:          q,
		Origin:           origin,
		Status:           domain.StatusPending,
		NotificationDate: c.NotificationDate,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
