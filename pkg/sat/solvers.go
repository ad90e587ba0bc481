package sat

func NewKissatSolver(path string) SATSolver {
	return &processSolver{name: "kissat", path: path, args: []string{"-q", "--relaxed"}, input: stdinInput}
}

func NewCadicalSolver(path string) SATSolver {
	return &processSolver{name: "cadical", path: path, args: []string{"-q"}, input: stdinInput}
}

func NewCryptominisatSolver(path string) SATSolver {
	return &processSolver{name: "cryptominisat", path: path, args: []string{"--verb", "0"}, input: stdinInput}
}

// Minisat and glucose write the model to an output file instead of standard output
func NewMinisatSolver(path string) SATSolver {
	return &processSolver{name: "minisat", path: path, args: []string{"-verb=0"}, input: fileInOut}
}

func NewGlucoseSimpSolver(path string) SATSolver {
	return &processSolver{name: "glucose-simp", path: path, args: []string{"-verb=0"}, input: fileInOut}
}

func NewGlucoseSyrupSolver(path string) SATSolver {
	return &processSolver{name: "glucose-syrup", path: path, args: []string{"-verb=0"}, input: fileInOut}
}

func NewOrtoolsatSolver(path string) SATSolver {
	return &processSolver{name: "ortoolsat", path: path, input: fileInput}
}

func NewSlimeSolver(path string) SATSolver {
	return &processSolver{name: "slime", path: path, input: fileInput}
}
