// Golden-output runner for the decompiler. Each .ncs fixture has a
// .<name>.ncs.json file recording the expected listing; the runner replays
// the decompiler over every fixture and diffs the captured output.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

type Golden struct {
	SourceHash string    `json:"source_hash"`
	Args       []string  `json:"args,omitempty"`
	Result     Execution `json:"result"`
}

type FileResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

var (
	decompiler     = flag.String("decompiler", "./ncsdec", "Path to the decompiler under test.")
	decompilerArgs = flag.String("args", "", "Extra arguments for the decompiler (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given .ncs file.")
	testFiles      = flag.String("test-files", "tests/*.ncs", "Glob pattern(s) for fixtures to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each decompiler invocation.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	jsonDir        = flag.String("dir", "", "Directory for golden JSON files (defaults to the fixture's dir).")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *generateGolden != "" {
		if err := writeGolden(*generateGolden); err != nil {
			log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
		}
		return
	}
	runSuite()
}

func goldenPath(fixture string) string {
	name := "." + filepath.Base(fixture) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, name)
	}
	return filepath.Join(filepath.Dir(fixture), name)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func decompile(fixture string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	args := append(strings.Fields(*decompilerArgs), fixture)
	start := time.Now()
	cmd := exec.CommandContext(ctx, *decompiler, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()

	result := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		result.ExitCode = -1
	}
	return result
}

func writeGolden(fixture string) error {
	hash, err := hashFile(fixture)
	if err != nil {
		return fmt.Errorf("could not hash %s: %w", fixture, err)
	}
	golden := Golden{
		SourceHash: hash,
		Args:       strings.Fields(*decompilerArgs),
		Result:     decompile(fixture),
	}
	data, err := json.MarshalIndent(golden, "", "  ")
	if err != nil {
		return err
	}
	path := goldenPath(fixture)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, path)
	return nil
}

func testFixture(fixture string) *FileResult {
	path := goldenPath(fixture)
	data, err := os.ReadFile(path)
	if err != nil {
		return &FileResult{File: fixture, Status: "SKIP", Message: "no golden file; run with -generate-golden first"}
	}
	var golden Golden
	if err := json.Unmarshal(data, &golden); err != nil {
		return &FileResult{File: fixture, Status: "ERROR", Message: fmt.Sprintf("could not parse %s: %v", path, err)}
	}

	hash, err := hashFile(fixture)
	if err != nil {
		return &FileResult{File: fixture, Status: "ERROR", Message: fmt.Sprintf("could not hash fixture: %v", err)}
	}
	if golden.SourceHash != "" && golden.SourceHash != hash {
		return &FileResult{File: fixture, Status: "ERROR", Message: "fixture changed since its golden file was generated"}
	}

	got := decompile(fixture)
	var diffs strings.Builder
	if got.TimedOut {
		diffs.WriteString("decompiler timed out\n")
	}
	if got.ExitCode != golden.Result.ExitCode {
		fmt.Fprintf(&diffs, "exit code mismatch: want %d, got %d\n", golden.Result.ExitCode, got.ExitCode)
	}
	if d := cmp.Diff(golden.Result.Stdout, got.Stdout); d != "" {
		fmt.Fprintf(&diffs, "stdout mismatch (-want +got):\n%s", d)
	}
	if d := cmp.Diff(golden.Result.Stderr, got.Stderr); d != "" {
		fmt.Fprintf(&diffs, "stderr mismatch (-want +got):\n%s", d)
	}

	if diffs.Len() > 0 {
		return &FileResult{File: fixture, Status: "FAIL", Message: "output mismatch", Diff: diffs.String()}
	}
	return &FileResult{File: fixture, Status: "PASS"}
}

func runSuite() {
	var files []string
	for _, pattern := range strings.Fields(*testFiles) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			log.Fatalf("%s[ERROR]%s invalid glob pattern %q: %v\n", cRed, cNone, pattern, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		log.Println("No fixtures found matching the pattern(s).")
		return
	}

	skip := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skip[f] = true
	}

	tasks := make(chan string, len(files))
	results := make(chan *FileResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range tasks {
				results <- testFixture(f)
			}
		}()
	}
	for _, f := range files {
		if skip[f] {
			results <- &FileResult{File: f, Status: "SKIP", Message: "explicitly skipped"}
			continue
		}
		tasks <- f
	}
	close(tasks)
	wg.Wait()
	close(results)

	var all []*FileResult
	for r := range results {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })

	counts := map[string]int{}
	for _, r := range all {
		counts[r.Status]++
		color := cGreen
		switch r.Status {
		case "FAIL", "ERROR":
			color = cRed
		case "SKIP":
			color = cYellow
		}
		log.Printf("%s[%s]%s %s %s", color, r.Status, cNone, r.File, r.Message)
		if r.Diff != "" {
			log.Print(r.Diff)
		}
	}
	log.Printf("%s%d passed, %d failed, %d skipped, %d errors%s",
		cBold, counts["PASS"], counts["FAIL"], counts["SKIP"], counts["ERROR"], cNone)

	if data, err := json.MarshalIndent(all, "", "  "); err == nil {
		out := *outputJSON
		if *jsonDir != "" {
			out = filepath.Join(*jsonDir, out)
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			log.Printf("%s[WARN]%s could not write report: %v\n", cYellow, cNone, err)
		}
	}

	if counts["FAIL"] > 0 || counts["ERROR"] > 0 {
		os.Exit(1)
	}
}
