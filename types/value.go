// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// TransientIssuer is the issuer used for locally deployed contracts.
const TransientIssuer = "S1G2081040G2081040G2081040G208105NK8PE5"

var (
	_ Value = Int(0)
	_ Value = Bool(false)
	_ Value = StandardPrincipal("")
	_ Value = ContractIdentifier{}
	_ Value = Buffer(nil)
	_ Value = Tuple{}
	_ Value = Optional{}
	_ Value = Response{}
)

// Value is a contract value. The set of implementations is closed.
type Value interface {
	fmt.Stringer

	typePrefix() byte
}

type Int int64

func (Int) typePrefix() byte { return prefixInt }
func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }

type Bool bool

func (b Bool) typePrefix() byte {
	if b {
		return prefixTrue
	}
	return prefixFalse
}

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// StandardPrincipal is an account address.
type StandardPrincipal string

func (StandardPrincipal) typePrefix() byte { return prefixStandardPrincipal }
func (p StandardPrincipal) String() string { return "'" + string(p) }

// ContractIdentifier names a contract by its issuing principal and name. It
// doubles as the contract principal value.
type ContractIdentifier struct {
	Issuer string
	Name   string
}

// LocalContract returns the identifier of a contract issued by the
// transient issuer.
func LocalContract(name string) ContractIdentifier {
	return ContractIdentifier{Issuer: TransientIssuer, Name: name}
}

// ParseContractIdentifier parses "ISSUER.name", with an optional leading quote.
func ParseContractIdentifier(s string) (ContractIdentifier, error) {
	s = strings.TrimPrefix(s, "'")
	i := strings.IndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return ContractIdentifier{}, fmt.Errorf("malformed contract identifier %q", s)
	}
	return ContractIdentifier{Issuer: s[:i], Name: s[i+1:]}, nil
}

func (ContractIdentifier) typePrefix() byte { return prefixContractPrincipal }

func (c ContractIdentifier) String() string { return c.Issuer + "." + c.Name }

// Principal returns the quoted principal literal of the contract.
func (c ContractIdentifier) Principal() string { return "'" + c.String() }

// ParsePrincipal parses a standard or contract principal, with or without a
// leading quote.
func ParsePrincipal(s string) (Value, error) {
	s = strings.TrimPrefix(s, "'")
	if s == "" {
		return nil, fmt.Errorf("empty principal")
	}
	if strings.IndexByte(s, '.') >= 0 {
		return ParseContractIdentifier(s)
	}
	return StandardPrincipal(s), nil
}

// IsPrincipal reports whether v can own assets.
func IsPrincipal(v Value) bool {
	switch v.(type) {
	case StandardPrincipal, ContractIdentifier:
		return true
	default:
		return false
	}
}

type Buffer []byte

func (Buffer) typePrefix() byte { return prefixBuffer }
func (b Buffer) String() string { return "0x" + hex.EncodeToString(b) }

type TupleField struct {
	Name  string
	Value Value
}

// Tuple fields are kept sorted by name.
type Tuple struct {
	Fields []TupleField
}

// NewTuple sorts fields by name and rejects duplicates.
func NewTuple(fields ...TupleField) (Tuple, error) {
	sorted := make([]TupleField, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return Tuple{}, fmt.Errorf("duplicate tuple field %q", sorted[i].Name)
		}
	}
	return Tuple{Fields: sorted}, nil
}

func (Tuple) typePrefix() byte { return prefixTuple }

func (t Tuple) Get(name string) (Value, bool) {
	i := sort.Search(len(t.Fields), func(i int) bool { return t.Fields[i].Name >= name })
	if i < len(t.Fields) && t.Fields[i].Name == name {
		return t.Fields[i].Value, true
	}
	return nil, false
}

func (t Tuple) String() string {
	var sb strings.Builder
	sb.WriteString("(tuple")
	for _, field := range t.Fields {
		fmt.Fprintf(&sb, " (%s %s)", field.Name, field.Value)
	}
	sb.WriteString(")")
	return sb.String()
}

// Optional holds a nil Value when it is none.
type Optional struct {
	Value Value
}

func Some(v Value) Optional { return Optional{Value: v} }

var None = Optional{}

func (o Optional) IsSome() bool { return o.Value != nil }

func (o Optional) typePrefix() byte {
	if o.Value == nil {
		return prefixNone
	}
	return prefixSome
}

func (o Optional) String() string {
	if o.Value == nil {
		return "none"
	}
	return fmt.Sprintf("(some %s)", o.Value)
}

type Response struct {
	Committed bool
	Value     Value
}

func OkResponse(v Value) Response { return Response{Committed: true, Value: v} }
func ErrResponse(v Value) Response { return Response{Committed: false, Value: v} }

func (r Response) typePrefix() byte {
	if r.Committed {
		return prefixOk
	}
	return prefixErr
}

func (r Response) String() string {
	if r.Committed {
		return fmt.Sprintf("(ok %s)", r.Value)
	}
	return fmt.Sprintf("(err %s)", r.Value)
}

// Equal compares values by their serialized form.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	aBytes, err := Serialize(a)
	if err != nil {
		return false
	}
	bBytes, err := Serialize(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aBytes, bBytes)
}
