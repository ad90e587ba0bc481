package sat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// parseSolution reads the "v ..." lines of a competition-format solver output
func parseSolution(solverOutput string) (SATSolution, error) {
	lines := lo.Filter(strings.Split(solverOutput, "\n"), func(line string, _ int) bool {
		return len(line) > 0 && line[0] == 'v'
	})
	fields := lo.FlatMap(lines, func(line string, _ int) []string {
		return strings.Fields(line[1:])
	})
	return parseLiterals(fields)
}

// parseModel reads a minisat-style output file: a "SAT" header followed by the literals
func parseModel(solverOutput string) (SATSolution, error) {
	fields := strings.Fields(solverOutput)
	if len(fields) > 0 && (fields[0] == "SAT" || fields[0] == "SATISFIABLE") {
		fields = fields[1:]
	}
	return parseLiterals(fields)
}

func parseLiterals(fields []string) (SATSolution, error) {
	solution := make(SATSolution, 0, len(fields))
	for _, valueStr := range fields {
		value, err := strconv.ParseInt(valueStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid literal in solver output: %v", err)
		}
		// The assignment is terminated by 0
		if value == 0 {
			break
		}
		solution = append(solution, value)
	}
	return solution, nil
}
