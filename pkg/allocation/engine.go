package allocation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Allocator places demands into rooms and audits allocations
type Allocator interface {
	Run(ctx context.Context, input Input) (*Report, error)
	Validate(records []model.AllocationRecord) []Conflict
}

type DemandState uint8

const (
	Pending DemandState = iota
	Evaluating
	Placed
	Unplaced
)

func (state DemandState) String() string {
	return [...]string{"PENDING", "EVALUATING", "PLACED", "UNPLACED"}[state]
}

// Engine is the greedy ranking and assignment engine. An Engine holds configuration only, so a single value
// may serve concurrent runs; every run owns its own availability index.
type Engine struct {
	weights    Weights
	logger     *zap.Logger
	observer   Observer
	budget     time.Duration
	contention bool

	// Wraps the per-run index once pinned records are reserved. Nil uses the index as is.
	wrapIndex func(index *AvailabilityIndex) reservations
}

type Option func(*Engine)

func WithWeights(weights Weights) Option {
	return func(engine *Engine) { engine.weights = weights }
}

func WithLogger(logger *zap.Logger) Option {
	return func(engine *Engine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(engine *Engine) {
		if observer != nil {
			engine.observer = observer
		}
	}
}

// WithBudget bounds the wall-clock time of a run. Zero means unbounded.
func WithBudget(budget time.Duration) Option {
	return func(engine *Engine) { engine.budget = budget }
}

func WithContentionAnalysis(enabled bool) Option {
	return func(engine *Engine) { engine.contention = enabled }
}

func NewEngine(options ...Option) *Engine {
	engine := &Engine{
		weights:  DefaultWeights(),
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

// RunAllocation runs a fresh Engine over the given inventory
func RunAllocation(
	ctx context.Context,
	rooms []model.Room,
	professors []model.Professor,
	demands []model.Demand,
	pinned []model.AllocationRecord,
	catalog model.Catalog,
	options ...Option,
) (*Report, error) {
	return NewEngine(options...).Run(ctx, Input{
		Rooms:      rooms,
		Professors: professors,
		Demands:    demands,
		Pinned:     pinned,
		Catalog:    catalog,
	})
}

func (engine *Engine) Validate(records []model.AllocationRecord) []Conflict {
	return ValidateAllocations(records)
}

// Run allocates every non-pinned demand in priority order. Invalid input yields an *InputError and no report.
// Cancellation (or an exhausted budget) yields a partial report together with an error wrapping
// ErrRunAborted.
func (engine *Engine) Run(ctx context.Context, input Input) (*Report, error) {
	start := time.Now()
	logger := engine.logger.With(zap.String("semester", input.Semester))

	//** Validate input
	lookup, err := validateInput(input)
	if err != nil {
		logger.Warn("rejected allocation input", zap.Error(err))
		return nil, err
	}

	if engine.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, engine.budget)
		defer cancel()
	}

	run := &allocationRun{
		engine:  engine,
		logger:  logger,
		lookup:  lookup,
		scorer:  scorer{weights: engine.weights},
		states:  make(map[uint64]DemandState, len(input.Demands)),
		builder: newReportBuilder(runID(input, engine.weights), input.Semester),
	}

	//** Reserve pinned records
	index, err := reservePinned(input)
	if err != nil {
		logger.Warn("rejected pinned records", zap.Error(err))
		return nil, err
	}
	run.index = index
	if engine.wrapIndex != nil {
		run.index = engine.wrapIndex(index)
	}
	for _, record := range input.Pinned {
		run.transition(record.Demand, Placed)
		run.builder.AddPlacement(Placement{
			Demand:    record.Demand,
			Room:      record.Room,
			Professor: record.Professor,
			Slots:     record.Slots,
			Pinned:    record.Pinned,
		})
	}

	//** Order pending demands
	pending := lo.Filter(input.Demands, func(demand model.Demand, _ int) bool {
		_, pinned := run.states[demand.Id]
		return !pinned
	})
	prioritize(pending)
	for _, demand := range pending {
		run.states[demand.Id] = Pending
	}

	logger.Info("starting allocation run",
		zap.Int("rooms", len(input.Rooms)),
		zap.Int("demands", len(input.Demands)),
		zap.Int("pinned", len(input.Pinned)),
	)

	//** Place demands
	var abortErr error
	for i, demand := range pending {
		if err := ctx.Err(); err != nil {
			abortErr = err
			run.abort(pending[i:])
			break
		}
		if err := run.place(demand, input.Rooms); err != nil {
			logger.Error("allocation run failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrInternalConsistency, err)
		}
	}

	//** Contention analysis
	if engine.contention {
		contention, err := analyzeContention(input, lookup, mustReservePinned(input))
		if err != nil {
			logger.Warn("cannot analyze contention", zap.Error(err))
		} else {
			run.builder.SetContention(contention)
		}
	}

	//** Build report
	run.builder.SetAborted(abortErr != nil)
	report := run.builder.Build()
	if len(report.Conflicts) > 0 {
		logger.Error("allocation has conflicts",
			zap.Int("conflicts", len(report.Conflicts)),
			zap.Uint64s("demands", conflictingDemands(report.Conflicts)),
		)
	}

	elapsed := time.Since(start)
	engine.observer.RunCompleted(report, elapsed)
	logger.Info("finished allocation run",
		zap.String("runId", report.RunID),
		zap.Int("placed", report.PlacedCount()),
		zap.Int("unplaced", report.UnplacedCount()),
		zap.Bool("aborted", report.Aborted),
		zap.Duration("elapsed", elapsed),
	)

	if abortErr != nil {
		return report, fmt.Errorf("%w: %w", ErrRunAborted, abortErr)
	}
	return report, nil
}

// reservations is the part of the AvailabilityIndex the placement loop works through
type reservations interface {
	Free(room, professor uint64, slots []model.TimeSlot) bool
	Reserve(room, professor uint64, slot model.TimeSlot, demand uint64) error
	Release(room, professor uint64, slot model.TimeSlot)
}

// allocationRun is the per-run arena
type allocationRun struct {
	engine  *Engine
	logger  *zap.Logger
	lookup  lookups
	scorer  scorer
	index   reservations
	states  map[uint64]DemandState
	builder *reportBuilder
}

var transitions = map[DemandState][]DemandState{
	Pending:    {Evaluating, Unplaced},
	Evaluating: {Placed, Unplaced},
}

// transition moves a demand through its lifecycle. Pinned demands enter directly as Placed.
func (run *allocationRun) transition(demand uint64, to DemandState) {
	from, known := run.states[demand]
	if known && !slices.Contains(transitions[from], to) {
		log.Panicf("demand %v cannot move from %v to %v", demand, from, to)
	}
	if !known && to != Placed {
		log.Panicf("demand %v must be pending before moving to %v", demand, to)
	}
	run.states[demand] = to
}

func (run *allocationRun) place(demand model.Demand, rooms []model.Room) error {
	run.transition(demand.Id, Evaluating)
	professor := run.lookup.professors[demand.Professor]

	//** Hard constraints
	eligibleRooms := EligibleRooms(demand, professor, rooms)
	if len(eligibleRooms) == 0 {
		run.unplace(demand.Id, NoEligibleRoom, 0)
		return nil
	}

	//** Availability
	candidates := lo.Filter(eligibleRooms, func(room model.Room, _ int) bool {
		return run.index.Free(room.Id, professor.Id, demand.Pattern)
	})
	if len(candidates) == 0 {
		run.unplace(demand.Id, NoAvailableSlot, len(eligibleRooms))
		return nil
	}

	//** Soft constraints
	best, bestScore := candidates[0], run.scorer.Score(demand, professor, candidates[0])
	for _, room := range candidates[1:] {
		score := run.scorer.Score(demand, professor, room)
		if better(score, room.Id, bestScore, best.Id) {
			best, bestScore = room, score
		}
	}

	//** Reserve
	for i, slot := range demand.Pattern {
		if err := run.index.Reserve(best.Id, professor.Id, slot, demand.Id); err != nil {
			// Roll back the slots already taken for this demand
			for _, reserved := range demand.Pattern[:i] {
				run.index.Release(best.Id, professor.Id, reserved)
			}
			return err
		}
	}

	run.transition(demand.Id, Placed)
	run.builder.AddPlacement(Placement{
		Demand:    demand.Id,
		Room:      best.Id,
		Professor: professor.Id,
		Slots:     demand.Pattern,
		Score:     bestScore,
	})
	run.engine.observer.DemandPlaced(demand.Id, best.Id)
	run.logger.Debug("placed demand",
		zap.Uint64("demand", demand.Id),
		zap.Uint64("room", best.Id),
		zap.String("score", bestScore.String()),
		zap.Int("candidates", len(candidates)),
	)
	return nil
}

func (run *allocationRun) unplace(demand uint64, reason UnplacedReason, eligibleRooms int) {
	run.transition(demand, Unplaced)
	run.builder.AddUnplacement(Unplacement{Demand: demand, Reason: reason, EligibleRooms: eligibleRooms})
	run.engine.observer.DemandUnplaced(demand, reason)
	run.logger.Info("demand left unplaced",
		zap.Uint64("demand", demand),
		zap.String("reason", string(reason)),
		zap.Int("eligibleRooms", eligibleRooms),
	)
}

func (run *allocationRun) abort(remaining []model.Demand) {
	run.logger.Warn("allocation run aborted", zap.Int("remaining", len(remaining)))
	for _, demand := range remaining {
		run.unplace(demand.Id, RunAborted, 0)
	}
}

// Higher score wins, ties go to the lowest room id
func better(score decimal.Decimal, room uint64, bestScore decimal.Decimal, bestRoom uint64) bool {
	if order := score.Cmp(bestScore); order != 0 {
		return order > 0
	}
	return room < bestRoom
}

// prioritize orders demands by explicit priority, then by enrollment (hardest to seat first), then by id
func prioritize(demands []model.Demand) {
	slices.SortFunc(demands, func(a, b model.Demand) int {
		if order := cmp.Compare(b.Priority, a.Priority); order != 0 {
			return order
		}
		if order := cmp.Compare(b.Enrollment, a.Enrollment); order != 0 {
			return order
		}
		return cmp.Compare(a.Id, b.Id)
	})
}

// reservePinned loads pinned records into a fresh index. Pinned records that collide with each other are
// reported as invalid input.
func reservePinned(input Input) (*AvailabilityIndex, error) {
	index := NewAvailabilityIndex(input.Catalog)
	for i, record := range input.Pinned {
		for _, slot := range record.Slots {
			if err := index.Reserve(record.Room, record.Professor, slot, record.Demand); err != nil {
				var conflict *ConflictError
				if errors.As(err, &conflict) {
					return nil, inputErrorf(fmt.Sprintf("pinned[%v]", i), "%v", conflict)
				}
				return nil, err
			}
		}
	}
	return index, nil
}

func mustReservePinned(input Input) *AvailabilityIndex {
	index, err := reservePinned(input)
	if err != nil {
		log.Panicf("pinned records were already reserved once: %v", err)
	}
	return index
}

func pinnedDemands(records []model.AllocationRecord) map[uint64]bool {
	return lo.SliceToMap(records, func(record model.AllocationRecord) (uint64, bool) { return record.Demand, true })
}
