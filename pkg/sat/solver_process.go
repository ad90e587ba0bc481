package sat

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type inputMode uint8

const (
	stdinInput inputMode = iota // DIMACS is fed through standard input
	fileInput                   // DIMACS is written to a temporary file passed as the last argument
	fileInOut                   // Like fileInput, plus a temporary output file receiving the model
)

// processSolver runs a SAT solver executable following the competition conventions: exit-code 10 stands for
// satisfiable and exit-code 20 stands for unsatisfiable
type processSolver struct {
	name  string
	path  string
	args  []string
	input inputMode
}

func (solver *processSolver) Solve(ctx context.Context, sat SAT) (SATSolution, error) {
	dimacs := sat.ToDIMACS() // Transform SAT into DIMACS-CNF string format
	args := append([]string{}, solver.args...)

	var outputFile string
	switch solver.input {
	case fileInput, fileInOut:
		inputFile, err := writeTemp("dimacs-*.cnf", dimacs)
		if err != nil {
			return nil, err
		}
		defer os.Remove(inputFile) // Ensure the file is removed after execution
		args = append(args, inputFile)

		if solver.input == fileInOut {
			outputFile, err = writeTemp(solver.name+"_output-*.cnf", "")
			if err != nil {
				return nil, err
			}
			defer os.Remove(outputFile)
			args = append(args, outputFile)
		}
	}

	cmd := exec.CommandContext(ctx, solver.path, args...)
	if solver.input == stdinInput {
		cmd.Stdin = strings.NewReader(dimacs)
	}

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%v execution interrupted: %w", solver.name, ctx.Err())
	}
	if cmd.ProcessState == nil {
		return nil, fmt.Errorf("cannot start %v: %w", solver.name, err)
	}

	exitCode := cmd.ProcessState.ExitCode()
	if err != nil && exitCode != 10 && exitCode != 20 {
		return nil, fmt.Errorf("an error occurred during %v execution: %v : %v", solver.name, err.Error(), stderr.String())
	} else if exitCode == 20 {
		return nil, nil
	}

	if solver.input == fileInOut {
		output, err := os.ReadFile(outputFile) // Read the output file
		if err != nil {
			return nil, fmt.Errorf("failed to read output file: %v", err)
		}
		return parseModel(string(output))
	}
	return parseSolution(stdOut.String())
}

func writeTemp(pattern, content string) (string, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %v", err)
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write temporary file: %v", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to close temporary file: %v", err)
	}
	return file.Name(), nil
}
