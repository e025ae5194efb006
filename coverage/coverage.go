// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package coverage records which contract lines were evaluated and merges
// the results of many runs into an LCOV report.
package coverage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/types"
	"github.com/ava-labs/contractvm/vm"
)

var _ vm.EvalObserver = &Reporter{}

// SourceFile is the registration record of one contract.
type SourceFile struct {
	Contract        string   `json:"contract"`
	SrcFile         string   `json:"src_file"`
	ExecutableLines []uint32 `json:"executable_lines"`
}

// LineCount is a [line, count] pair.
type LineCount [2]uint64

// Run is the coverage record of one test run.
type Run struct {
	Coverage map[string][]LineCount `json:"coverage"`
}

// Reporter counts evaluations per contract line.
type Reporter struct {
	lock     sync.Mutex
	log      log.Logger
	executed map[string]map[uint32]uint64
}

func NewReporter(logger log.Logger) *Reporter {
	if logger == nil {
		logger = log.New("module", "coverage")
	}
	return &Reporter{
		log:      logger,
		executed: make(map[string]map[uint32]uint64),
	}
}

// ObserveEval implements the vm.EvalObserver interface. Lists are not
// counted themselves; their elements are reported as they are evaluated.
func (r *Reporter) ObserveEval(contract types.ContractIdentifier, expr *ast.Expr) {
	if expr.Kind == ast.List {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	key := contract.String()
	lines, ok := r.executed[key]
	if !ok {
		lines = make(map[uint32]uint64)
		r.executed[key] = lines
	}
	lines[expr.Span.StartLine]++
}

// Run returns the counts observed so far, sorted by line.
func (r *Reporter) Run() *Run {
	r.lock.Lock()
	defer r.lock.Unlock()

	run := &Run{Coverage: make(map[string][]LineCount, len(r.executed))}
	for contract, lines := range r.executed {
		counts := make([]LineCount, 0, len(lines))
		for line, count := range lines {
			counts = append(counts, LineCount{uint64(line), count})
		}
		sort.Slice(counts, func(i, j int) bool { return counts[i][0] < counts[j][0] })
		run.Coverage[contract] = counts
	}
	return run
}

// WriteFile writes the run record to [filename].
func (r *Reporter) WriteFile(filename string) error {
	if err := writeJSON(filename, r.Run()); err != nil {
		r.log.Error("failed to write coverage file", "file", filename, "error", err)
		return err
	}
	return nil
}

// ExecutableLines returns the sorted lines of [exprs] that can be evaluated.
// A definition contributes only the expressions it evaluates: a constant's
// value, a variable's initial value, a bounded token's supply and the body
// of a function.
func ExecutableLines(exprs []*ast.Expr) []uint32 {
	var (
		lines    []uint32
		seen     = make(map[uint32]struct{})
		frontier = make([]*ast.Expr, 0, len(exprs))
	)
	frontier = append(frontier, exprs...)
	for len(frontier) > 0 {
		expr := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		if evaluated, ok := definitionBody(expr); ok {
			frontier = append(frontier, evaluated...)
			continue
		}
		if children, ok := expr.MatchList(); ok {
			frontier = append(frontier, children...)
			continue
		}
		line := expr.Span.StartLine
		if _, ok := seen[line]; !ok {
			seen[line] = struct{}{}
			lines = append(lines, line)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
	return lines
}

// definitionBody returns the evaluated parts of a well formed definition.
func definitionBody(expr *ast.Expr) ([]*ast.Expr, bool) {
	head, ok := expr.Head()
	if !ok {
		return nil, false
	}
	args := expr.List[1:]
	switch head {
	case "define-constant":
		if len(args) != 2 {
			return nil, false
		}
		return args[1:], true
	case "define-data-var":
		if len(args) != 3 {
			return nil, false
		}
		return args[2:], true
	case "define-fungible-token":
		if len(args) != 1 && len(args) != 2 {
			return nil, false
		}
		return args[1:], true
	case "define-public", "define-private", "define-read-only":
		if len(args) < 2 {
			return nil, false
		}
		return args[1:], true
	case "define-map", "define-non-fungible-token":
		return nil, true
	}
	return nil, false
}

// RegisterSourceFile writes the registration record of [contract], parsed
// from [srcFile], to [filename].
func RegisterSourceFile(contract types.ContractIdentifier, srcFile string, exprs []*ast.Expr, filename string) error {
	return writeJSON(filename, &SourceFile{
		Contract:        contract.String(),
		SrcFile:         srcFile,
		ExecutableLines: ExecutableLines(exprs),
	})
}

// ProduceLCOV sums the runs in [coverageFiles] and writes one LCOV record
// per registered contract to [out].
func ProduceLCOV(out string, registerFiles, coverageFiles []string) error {
	runs := make([]*Run, 0, len(coverageFiles))
	for _, filename := range coverageFiles {
		run := &Run{}
		if err := readJSON(filename, run); err != nil {
			return err
		}
		runs = append(runs, run)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	errs := wrappers.Errs{}
	for _, filename := range registerFiles {
		info := &SourceFile{}
		if err := readJSON(filename, info); err != nil {
			errs.Add(err)
			break
		}
		if err := writeRecord(w, info, runs); err != nil {
			errs.Add(err)
			break
		}
	}
	errs.Add(w.Flush(), f.Close())
	return errs.Err
}

func writeRecord(w io.Writer, info *SourceFile, runs []*Run) error {
	summed := make(map[uint64]uint64)
	for _, run := range runs {
		for _, lc := range run.Coverage[info.Contract] {
			summed[lc[0]] += lc[1]
		}
	}

	if _, err := fmt.Fprintf(w, "TN:%s\nSF:%s\n", info.Contract, info.SrcFile); err != nil {
		return err
	}
	hit := 0
	for _, line := range info.ExecutableLines {
		count := summed[uint64(line)]
		if count > 0 {
			hit++
		}
		if _, err := fmt.Fprintf(w, "DA:%d,%d\n", line, count); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "LH:%d\nLF:%d\nend_of_record\n", hit, len(info.ExecutableLines))
	return err
}

func writeJSON(filename string, v interface{}) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	errs := wrappers.Errs{}
	errs.Add(json.NewEncoder(f).Encode(v), f.Close())
	return errs.Err
}

func readJSON(filename string, v interface{}) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return nil
}
