// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/blocktree"
	"github.com/ava-labs/contractvm/contractdb"
	"github.com/ava-labs/contractvm/types"
	"github.com/ava-labs/contractvm/vm"
)

const counterSource = `(define-data-var n int 0)
(define-public (bump (by int))
  (begin
    (var-set! n (+ (var-get n) by))
    (ok by)))
(define-public (never)
  (ok 7))`

func TestExecutableLines(t *testing.T) {
	exprs, err := ast.Parse(counterSource)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 3, 4, 5, 7}, ExecutableLines(exprs))

	exprs, err = ast.Parse("(define-map m ((k int)) ((v int)))\n(define-fungible-token t)\n(define-fungible-token u\n  100)")
	require.NoError(t, err)
	require.Equal(t, []uint32{4}, ExecutableLines(exprs))
}

func TestReporter(t *testing.T) {
	require := require.New(t)
	reporter := NewReporter(log.New())
	id := types.LocalContract("counter")

	storage, err := blocktree.New(memdb.New(), blocktree.DefaultConfig, prometheus.NewRegistry(), log.New())
	require.NoError(err)
	env := vm.NewOwnedEnvironment(contractdb.New(storage), vm.WithEvalObserver(reporter))

	require.NoError(storage.Begin(blocktree.Sentinel, ids.ID{1}))
	require.NoError(env.InitializeContract(id, counterSource))
	for i := 0; i < 2; i++ {
		result, _, err := env.ExecuteTransaction(types.StandardPrincipal(id.Issuer), id, "bump", []types.Value{types.Int(2)})
		require.NoError(err)
		require.Equal(types.Value(types.OkResponse(types.Int(2))), result)
	}

	run := reporter.Run()
	require.Equal([]LineCount{{1, 1}, {4, 2}, {5, 2}}, run.Coverage[id.String()])

	dir := t.TempDir()
	exprs, err := ast.Parse(counterSource)
	require.NoError(err)
	register := filepath.Join(dir, "counter.json")
	require.NoError(RegisterSourceFile(id, "counter.clar", exprs, register))

	first := filepath.Join(dir, "run-1.json")
	require.NoError(reporter.WriteFile(first))
	second := filepath.Join(dir, "run-2.json")
	require.NoError(writeJSON(second, &Run{Coverage: map[string][]LineCount{
		id.String():     {{4, 1}, {5, 1}},
		"unregistered": {{1, 9}},
	}}))

	out := filepath.Join(dir, "lcov.info")
	require.NoError(ProduceLCOV(out, []string{register}, []string{first, second}))
	report, err := os.ReadFile(out)
	require.NoError(err)
	require.Equal("TN:"+id.String()+"\n"+
		"SF:counter.clar\n"+
		"DA:1,1\n"+
		"DA:3,0\n"+
		"DA:4,3\n"+
		"DA:5,3\n"+
		"DA:7,0\n"+
		"LH:3\n"+
		"LF:5\n"+
		"end_of_record\n", string(report))
}

func TestProduceLCOVMissingFile(t *testing.T) {
	dir := t.TempDir()
	err := ProduceLCOV(filepath.Join(dir, "lcov.info"), nil, []string{filepath.Join(dir, "missing.json")})
	require.Error(t, err)
}
