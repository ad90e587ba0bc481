package allocation

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/limaJavier/roomallocation/pkg/model"
	"github.com/limaJavier/roomallocation/pkg/sat"
	"github.com/samber/lo"
)

// Feasibility is the exact answer to "can every non-pinned demand be placed at once?"
type Feasibility struct {
	Feasible    bool                     `json:"feasible"`
	Witness     []model.AllocationRecord `json:"witness,omitempty"`     // A complete conflict-free placement, when feasible
	Uncoverable []uint64                 `json:"uncoverable,omitempty"` // Demands without a single candidate room
	Variables   uint64                   `json:"variables"`
	Clauses     int                      `json:"clauses"`
}

// candidate is the boolean variable x(d,r): demand d is placed in room r
type candidate struct {
	demand model.Demand
	room   uint64
}

type feasibilityState struct {
	candidates []candidate         // Variable v is candidates[v-1]
	variables  map[uint64][]int64  // demand -> its variables
	demands    []model.Demand      // Demands to place, ordered by id
	occupies   map[uint64][]uint64 // demand -> catalog ordinals of its pattern
}

// CheckFeasibility encodes the placement of every non-pinned demand as CNF and hands it to solver. Demands
// without candidate rooms make the instance infeasible without invoking the solver.
func CheckFeasibility(ctx context.Context, input Input, solver sat.SATSolver) (*Feasibility, error) {
	lookup, err := validateInput(input)
	if err != nil {
		return nil, err
	}
	index, err := reservePinned(input)
	if err != nil {
		return nil, err
	}

	state := newFeasibilityState(input, lookup, index)

	uncoverable := lo.FilterMap(state.demands, func(demand model.Demand, _ int) (uint64, bool) {
		return demand.Id, len(state.variables[demand.Id]) == 0
	})
	if len(uncoverable) > 0 {
		return &Feasibility{Feasible: false, Uncoverable: uncoverable}, nil
	}
	if len(state.demands) == 0 {
		return &Feasibility{Feasible: true, Witness: []model.AllocationRecord{}}, nil
	}

	satInstance := buildSat(uint64(len(state.candidates)), []func(state feasibilityState) [][]int64{
		completenessConstraints,
		uniquenessConstraints,
		roomConstraints,
		professorConstraints,
	}, state)

	solution, err := solver.Solve(ctx, satInstance)
	if err != nil {
		return nil, fmt.Errorf("cannot solve feasibility instance: %w", err)
	}

	feasibility := &Feasibility{
		Feasible:  solution != nil,
		Variables: satInstance.Variables,
		Clauses:   len(satInstance.Clauses),
	}
	if solution == nil {
		return feasibility, nil
	}
	if !satInstance.Satisfies(solution) {
		return nil, fmt.Errorf("solver returned an assignment that does not satisfy the instance")
	}

	feasibility.Witness = lo.FilterMap(solution, func(literal int64, _ int) (model.AllocationRecord, bool) {
		if literal <= 0 || literal > int64(len(state.candidates)) {
			return model.AllocationRecord{}, false
		}
		candidate := state.candidates[literal-1]
		return model.AllocationRecord{
			Demand:    candidate.demand.Id,
			Room:      candidate.room,
			Professor: candidate.demand.Professor,
			Slots:     slices.Clone(candidate.demand.Pattern),
		}, true
	})
	slices.SortFunc(feasibility.Witness, func(a, b model.AllocationRecord) int { return cmp.Compare(a.Demand, b.Demand) })
	return feasibility, nil
}

func newFeasibilityState(input Input, lookup lookups, index *AvailabilityIndex) feasibilityState {
	evaluator := newPredicateEvaluator()
	pinned := pinnedDemands(input.Pinned)

	demands := lo.Filter(input.Demands, func(demand model.Demand, _ int) bool { return !pinned[demand.Id] })
	slices.SortFunc(demands, func(a, b model.Demand) int { return cmp.Compare(a.Id, b.Id) })

	rooms := slices.Clone(input.Rooms)
	slices.SortFunc(rooms, func(a, b model.Room) int { return cmp.Compare(a.Id, b.Id) })

	state := feasibilityState{
		candidates: make([]candidate, 0),
		variables:  make(map[uint64][]int64, len(demands)),
		demands:    demands,
		occupies:   make(map[uint64][]uint64, len(demands)),
	}
	for _, demand := range demands {
		professor := lookup.professors[demand.Professor]
		for _, room := range rooms {
			if !eligible(evaluator, demand, professor, room) || !index.Free(room.Id, professor.Id, demand.Pattern) {
				continue
			}
			state.candidates = append(state.candidates, candidate{demand: demand, room: room.Id})
			state.variables[demand.Id] = append(state.variables[demand.Id], int64(len(state.candidates)))
		}
		state.occupies[demand.Id] = lo.Map(demand.Pattern, func(slot model.TimeSlot, _ int) uint64 {
			ordinal, _ := input.Catalog.Index(slot)
			return ordinal
		})
	}
	return state
}

// Checks whether two demands request at least one common slot
func (state feasibilityState) overlap(demand1, demand2 uint64) bool {
	return lo.Some(state.occupies[demand1], state.occupies[demand2])
}

func buildSat(variables uint64, constraints []func(state feasibilityState) [][]int64, state feasibilityState) sat.SAT {
	satInstance := sat.SAT{
		Variables: variables,
		Clauses:   [][]int64{},
	}

	type generated struct {
		position int
		clauses  [][]int64
	}
	constraintsChannel := make(chan generated, len(constraints)) // Channel to collect constraints

	// Execute constraints functions on different goroutines to improve performance
	for position, constraint := range constraints {
		go func() {
			constraintsChannel <- generated{position: position, clauses: constraint(state)}
		}()
	}

	// Collect generated constraints, keeping the order of the constraint functions so the instance is reproducible
	collected := make([][][]int64, len(constraints))
	for range constraints {
		result := <-constraintsChannel
		collected[result.position] = result.clauses
	}
	for _, clauses := range collected {
		satInstance.Clauses = append(satInstance.Clauses, clauses...)
	}
	return satInstance
}

//** Constraints

// Every demand is placed in at least one of its candidate rooms
func completenessConstraints(state feasibilityState) [][]int64 {
	clauses := make([][]int64, 0, len(state.demands))
	for _, demand := range state.demands {
		clauses = append(clauses, slices.Clone(state.variables[demand.Id]))
	}
	return clauses
}

// A demand is placed in at most one room
func uniquenessConstraints(state feasibilityState) [][]int64 {
	clauses := make([][]int64, 0)
	for _, demand := range state.demands {
		variables := state.variables[demand.Id]
		for i := range len(variables) - 1 {
			for j := i + 1; j < len(variables); j++ {
				clauses = append(clauses, []int64{-variables[i], -variables[j]})
			}
		}
	}
	return clauses
}

// Two demands sharing a slot cannot be placed in the same room
func roomConstraints(state feasibilityState) [][]int64 {
	clauses := make([][]int64, 0)
	for i := range len(state.candidates) - 1 {
		for j := i + 1; j < len(state.candidates); j++ {
			candidate1, candidate2 := state.candidates[i], state.candidates[j]
			if candidate1.room != candidate2.room ||
				candidate1.demand.Id == candidate2.demand.Id ||
				!state.overlap(candidate1.demand.Id, candidate2.demand.Id) {
				continue
			}
			clauses = append(clauses, []int64{-int64(i + 1), -int64(j + 1)})
		}
	}
	return clauses
}

// Two demands of the same professor sharing a slot cannot both be placed
func professorConstraints(state feasibilityState) [][]int64 {
	clauses := make([][]int64, 0)
	for i := range len(state.candidates) - 1 {
		for j := i + 1; j < len(state.candidates); j++ {
			candidate1, candidate2 := state.candidates[i], state.candidates[j]
			if candidate1.demand.Professor != candidate2.demand.Professor ||
				candidate1.demand.Id == candidate2.demand.Id ||
				!state.overlap(candidate1.demand.Id, candidate2.demand.Id) {
				continue
			}
			clauses = append(clauses, []int64{-int64(i + 1), -int64(j + 1)})
		}
	}
	return clauses
}
