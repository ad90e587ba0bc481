package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/samber/lo"

	"github.com/limaJavier/roomallocation/pkg/allocation"
	"github.com/limaJavier/roomallocation/pkg/model"
)

const (
	defaultExecutablePath = "../../bin/roomallocation"
	MB                    = 1024.0
)

type ResultType int

const (
	placed ResultType = iota
	unplaced
	feasible
	infeasible
)

var resultTypes = map[ResultType]string{
	placed:     "placed",
	unplaced:   "unplaced",
	feasible:   "feasible",
	infeasible: "infeasible",
}

type Instance struct {
	Name     string
	Path     string
	Size     InstanceSize
	Seed     uint64
	Snapshot model.Snapshot
}

type BenchmarkResult struct {
	Instance      string  `csv:"Instance"`
	Size          string  `csv:"Size"`
	Seed          uint64  `csv:"Seed"`
	Rooms         int     `csv:"Rooms"`
	Professors    int     `csv:"Professors"`
	Demands       int     `csv:"Demands"`
	Mode          string  `csv:"Mode"`
	Placed        int     `csv:"Placed"`
	Duration      int64   `csv:"Duration(ms)"`
	Memory        float32 `csv:"Memory(MB)"`
	CpuPercentage int64   `csv:"CPU(%)"`
	Result        string  `csv:"Result"`
}

func main() {
	executablePath := flag.String("exec", defaultExecutablePath, "Path to the roomallocation CLI binary")
	seeds := flag.Int("seeds", 3, "Number of random instances per size")
	solvers := flag.String("solvers", "", "Comma separated SAT solvers to run the feasibility audit with; empty skips it")
	out := flag.String("out", "benchmark_results.csv", "Path to the CSV results file")
	flag.Parse()

	directory, err := os.MkdirTemp("", "roomallocation-benchmark")
	if err != nil {
		log.Fatalf("cannot create instance directory: %v", err)
	}
	defer os.RemoveAll(directory)

	instances := getInstances(directory, *seeds)
	modes := append([]string{""}, splitSolvers(*solvers)...)
	results := make([]*BenchmarkResult, 0, len(instances)*len(modes))

	for _, instance := range instances {
		for _, solver := range modes {
			mode := lo.Ternary(solver == "", "allocation", "feasibility-"+solver)
			fmt.Printf("Benchmarking instance \"%v\" in mode \"%v\"\n", instance.Name, mode)

			result := measure(*executablePath, instance, solver)
			result.Mode = mode
			results = append(results, result)
		}
	}

	toCsv(*out, results)
}

// getInstances generates and writes every instance concurrently, returning them in size then seed order
func getInstances(directory string, seeds int) []Instance {
	instances := make([]Instance, len(instanceSizes)*seeds)

	var waitGroup sync.WaitGroup
	for i, size := range instanceSizes {
		for seed := range seeds {
			waitGroup.Add(1)
			go func() {
				defer waitGroup.Done()
				name := fmt.Sprintf("%v-%v", size.Name, seed)
				snapshot := generateSnapshot(size, uint64(seed))
				path := filepath.Join(directory, name+".json")

				bytes, err := json.Marshal(snapshot)
				if err != nil {
					log.Panicf("cannot marshal instance %v: %v", name, err)
				}
				if err := os.WriteFile(path, bytes, 0666); err != nil {
					log.Panicf("cannot write instance %v: %v", name, err)
				}
				instances[i*seeds+seed] = Instance{Name: name, Path: path, Size: size, Seed: uint64(seed), Snapshot: snapshot}
			}()
		}
	}
	waitGroup.Wait()

	return instances
}

func measure(executablePath string, instance Instance, solver string) *BenchmarkResult {
	args := []string{"-v", executablePath, "-file", instance.Path}
	if solver != "" {
		args = append(args, "-feasibility", solver)
	}
	cmd := exec.Command("/usr/bin/time", args...)

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stdErr bytes.Buffer
	cmd.Stderr = &stdErr

	cmd.Run()

	result := &BenchmarkResult{
		Instance:   instance.Name,
		Size:       instance.Size.Name,
		Seed:       instance.Seed,
		Rooms:      len(instance.Snapshot.Rooms),
		Professors: len(instance.Snapshot.Professors),
		Demands:    len(instance.Snapshot.Demands),
	}

	exitCode := cmd.ProcessState.ExitCode()
	if exitCode != 10 && exitCode != 20 {
		log.Fatalf("an error occurred during the execution of \"roomallocation\" at instance \"%v\" using solver \"%v\": %v\n", instance.Name, solver, stdErr.String())
	}
	switch {
	case solver == "":
		result.Result = resultTypes[lo.Ternary(exitCode == 10, placed, unplaced)]
		result.Placed = placedCount(stdOut.Bytes())
	default:
		result.Result = resultTypes[lo.Ternary(exitCode == 10, feasible, infeasible)]
	}

	splits := strings.Split(stdErr.String(), "\n")
	getLine := func(substr string) string {
		line, ok := lo.Find(splits, func(line string) bool {
			return strings.Contains(strings.ToLower(line), substr)
		})
		if !ok {
			log.Fatalf("Substring \"%v\" could not be found", substr)
		}
		return line
	}

	result.Duration = parseDurationLine(getLine("wall clock"))
	result.Memory = parseMemoryLine(getLine("maximum resident set size"))
	result.CpuPercentage = parseCpuPercentageLine(getLine("percent of cpu"))
	return result
}

func placedCount(output []byte) int {
	var report allocation.Report
	if err := json.Unmarshal(output, &report); err != nil {
		log.Fatalf("cannot parse allocation report: %v", err)
	}
	return report.PlacedCount()
}

func splitSolvers(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(solver string, _ int) string {
		return strings.ToLower(strings.TrimSpace(solver))
	}))
}

func toCsv(path string, results []*BenchmarkResult) {
	file, err := os.Create(path)
	if err != nil {
		log.Panicf("cannot create CSV file: %v", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&results, file); err != nil {
		log.Panicf("cannot write CSV results: %v", err)
	}
}

func parseDurationLine(line string) int64 {
	durationStr := strings.Split(line, "(h:mm:ss or m:ss):")[1][1:]
	return parseDuration(durationStr)
}

func parseDuration(durationStr string) int64 {
	parts := strings.Split(durationStr, ":")
	secondsStr := parts[len(parts)-1]
	secondsParts := strings.Split(secondsStr, ".")

	var duration int64
	if len(parts) == 3 { // h:mm:ss
		hours := lo.Must(strconv.Atoi(parts[0]))
		minutes := lo.Must(strconv.Atoi(parts[1]))
		seconds := lo.Must(strconv.Atoi(secondsParts[0]))
		hundredthOfSeconds := lo.Must(strconv.Atoi(secondsParts[1]))
		duration = int64(hours*3600+minutes*60+seconds)*1000 + int64(hundredthOfSeconds*10)
	} else if len(parts) == 2 { // m:ss
		minutes := lo.Must(strconv.Atoi(parts[0]))
		seconds := lo.Must(strconv.Atoi(secondsParts[0]))
		hundredthOfSeconds := lo.Must(strconv.Atoi(secondsParts[1]))
		duration = int64(minutes*60+seconds)*1000 + int64(hundredthOfSeconds*10)
	} else {
		log.Fatalf("unexpected duration format: %v", durationStr)
	}
	return duration
}

func parseMemoryLine(line string) float32 {
	memoryStr := strings.Split(line, ":")[1][1:]
	return float32(lo.Must(strconv.ParseFloat(memoryStr, 32)) / MB)
}

func parseCpuPercentageLine(line string) int64 {
	percentageStr := strings.Split(line, ":")[1][1:]
	percentageStr = percentageStr[:len(percentageStr)-1]
	return int64(lo.Must(strconv.Atoi(percentageStr)))
}
