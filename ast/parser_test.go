// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

func TestParseSpans(t *testing.T) {
	require := require.New(t)

	exprs, err := Parse(`(define-data-var datum int 1)
;; a comment
(define-public (set-val)
  (begin
    (var-set! datum 10)
    (ok (var-get datum))))`)
	require.NoError(err)
	require.Len(exprs, 2)

	head, ok := exprs[0].Head()
	require.True(ok)
	require.Equal("define-data-var", head)
	require.Equal(uint32(1), exprs[0].Span.StartLine)
	require.Equal(types.Int(1), exprs[0].List[3].Value)

	fn := exprs[1]
	require.Equal(uint32(3), fn.Span.StartLine)
	require.Equal(uint32(6), fn.Span.EndLine)
	body := fn.List[2]
	require.Equal(uint32(4), body.Span.StartLine)
	setter := body.List[1]
	require.Equal(uint32(5), setter.List[2].Span.StartLine)
	require.Equal(uint32(21), setter.List[2].Span.StartColumn)
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		text     string
		expected types.Value
	}{
		{"10", types.Int(10)},
		{"-1", types.Int(-1)},
		{"u7", types.Int(7)},
		{"'true", types.Bool(true)},
		{"false", types.Bool(false)},
		{"0x0102", types.Buffer{1, 2}},
		{"'SZ2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQ9H6DPR", types.StandardPrincipal("SZ2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQ9H6DPR")},
		{"'SP000000000000000000002Q6VF78.tokens", types.ContractIdentifier{Issuer: "SP000000000000000000002Q6VF78", Name: "tokens"}},
	}
	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			value, err := ParseValue(test.text)
			require.NoError(t, err)
			require.Equal(t, test.expected, value)
		})
	}
}

func TestParseContractRef(t *testing.T) {
	require := require.New(t)

	exprs, err := Parse("(contract-call! .contract-a flip)")
	require.NoError(err)
	ref := exprs[0].List[1]
	require.Equal(ContractRef, ref.Kind)
	require.Equal("contract-a", ref.Atom)
}

func TestParseErrors(t *testing.T) {
	for _, source := range []string{
		"(begin",
		")",
		"(print \"hello\")",
		"0xzz",
		"99999999999999999999",
		"(. x)",
	} {
		_, err := Parse(source)
		require.True(t, fault.IsCheck(err, fault.BadSyntax), source)
	}

	_, err := ParseValue("(ok 1)")
	require.True(t, fault.IsCheck(err, fault.BadSyntax))
}
