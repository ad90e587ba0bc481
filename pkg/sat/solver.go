package sat

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

type SATSolver interface {
	// Returns a solution of the SAT instance if satisfiable, else returns nil (these are valid outputs where error shall be nil)
	Solve(ctx context.Context, sat SAT) (SATSolution, error)
}

var constructors = map[string]func(path string) SATSolver{
	"kissat":        NewKissatSolver,
	"cadical":       NewCadicalSolver,
	"cryptominisat": NewCryptominisatSolver,
	"minisat":       NewMinisatSolver,
	"glucose-simp":  NewGlucoseSimpSolver,
	"glucose-syrup": NewGlucoseSyrupSolver,
	"ortoolsat":     NewOrtoolsatSolver,
	"slime":         NewSlimeSolver,
}

// Solvers lists the names accepted by NewSolver
func Solvers() []string {
	names := lo.Keys(constructors)
	slices.Sort(names)
	return names
}

// NewSolver builds the named solver. An empty path falls back to looking the solver's name up in PATH.
func NewSolver(name, path string) (SATSolver, error) {
	constructor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown SAT solver \"%v\", expected one of %v", name, Solvers())
	}
	if path == "" {
		path = name
	}
	return constructor(path), nil
}
