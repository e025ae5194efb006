// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeCanonical(t *testing.T) {
	require := require.New(t)

	a, err := NewTuple(TupleField{"b", Int(2)}, TupleField{"a", Bool(true)})
	require.NoError(err)
	b, err := NewTuple(TupleField{"a", Bool(true)}, TupleField{"b", Int(2)})
	require.NoError(err)

	aBytes, err := Serialize(a)
	require.NoError(err)
	bBytes, err := Serialize(b)
	require.NoError(err)
	require.Equal(aBytes, bBytes)
	require.True(Equal(a, b))
	require.False(Equal(a, Int(2)))
}

func TestDeserializeNested(t *testing.T) {
	require := require.New(t)

	tuple, err := NewTuple(
		TupleField{"owner", LocalContract("tokens")},
		TupleField{"amount", Int(-7)},
		TupleField{"memo", Some(Buffer{1, 2, 3})},
	)
	require.NoError(err)
	value := OkResponse(tuple)

	raw, err := Serialize(value)
	require.NoError(err)
	decoded, err := Deserialize(raw)
	require.NoError(err)
	require.True(Equal(value, decoded))
	require.Equal("(ok (tuple (amount -7) (memo (some 0x010203)) (owner S1G2081040G2081040G2081040G208105NK8PE5.tokens)))", decoded.String())
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	require := require.New(t)

	raw, err := Serialize(Int(1))
	require.NoError(err)

	_, err = Deserialize(append(raw, 0))
	require.ErrorIs(err, ErrInvalidValueFormat)

	_, err = Deserialize([]byte{0x7f})
	require.ErrorIs(err, ErrInvalidValueFormat)

	_, err = Deserialize(raw[:3])
	require.ErrorIs(err, ErrInvalidValueFormat)
}

func TestNewTupleRejectsDuplicates(t *testing.T) {
	_, err := NewTuple(TupleField{"a", Int(1)}, TupleField{"a", Int(2)})
	require.Error(t, err)
}

func TestParsePrincipal(t *testing.T) {
	require := require.New(t)

	p, err := ParsePrincipal("'SZ2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQ9H6DPR")
	require.NoError(err)
	require.Equal(StandardPrincipal("SZ2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKQ9H6DPR"), p)

	c, err := ParsePrincipal("SP000000000000000000002Q6VF78.tokens")
	require.NoError(err)
	require.Equal(ContractIdentifier{Issuer: "SP000000000000000000002Q6VF78", Name: "tokens"}, c)

	_, err = ParseContractIdentifier("no-dot")
	require.Error(err)
	_, err = ParsePrincipal("'")
	require.Error(err)
}
