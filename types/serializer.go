package types

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	prefixInt               byte = 0x00
	prefixBuffer            byte = 0x02
	prefixTrue              byte = 0x03
	prefixFalse             byte = 0x04
	prefixStandardPrincipal byte = 0x05
	prefixContractPrincipal byte = 0x06
	prefixOk                byte = 0x07
	prefixErr               byte = 0x08
	prefixNone              byte = 0x09
	prefixSome              byte = 0x0a
	prefixTuple             byte = 0x0c

	// MaxValueSize bounds a single serialized value.
	MaxValueSize = 1 << 20
	// maxDepth bounds nesting of optionals, responses and tuples.
	maxDepth = 32
)

var (
	ErrInvalidValueFormat = errors.New("invalid value format")
	errTooDeep            = errors.New("value nested too deeply")
)

// Serialize encodes [v] into its canonical byte form. Equal values always
// produce equal bytes, so the encoding is usable as a storage key.
func Serialize(v Value) ([]byte, error) {
	p := wrappers.Packer{MaxSize: MaxValueSize}
	if err := pack(&p, v, 0); err != nil {
		return nil, err
	}
	if p.Errored() {
		return nil, p.Err
	}
	return p.Bytes, nil
}

func pack(p *wrappers.Packer, v Value, depth int) error {
	if depth > maxDepth {
		return errTooDeep
	}
	if v == nil {
		return fmt.Errorf("%w: nil value", ErrInvalidValueFormat)
	}
	p.PackByte(v.typePrefix())
	switch v := v.(type) {
	case Int:
		p.PackLong(uint64(v))
	case Bool:
	case StandardPrincipal:
		p.PackStr(string(v))
	case ContractIdentifier:
		p.PackStr(v.Issuer)
		p.PackStr(v.Name)
	case Buffer:
		p.PackBytes(v)
	case Optional:
		if v.Value != nil {
			return pack(p, v.Value, depth+1)
		}
	case Response:
		return pack(p, v.Value, depth+1)
	case Tuple:
		p.PackInt(uint32(len(v.Fields)))
		for _, field := range v.Fields {
			p.PackStr(field.Name)
			if err := pack(p, field.Value, depth+1); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unexpected value %T", ErrInvalidValueFormat, v)
	}
	return p.Err
}

// Deserialize decodes bytes produced by Serialize. Trailing bytes are an
// error.
func Deserialize(raw []byte) (Value, error) {
	p := wrappers.Packer{Bytes: raw}
	v, err := unpack(&p, 0)
	if err != nil {
		return nil, err
	}
	if p.Errored() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValueFormat, p.Err)
	}
	if p.Offset != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidValueFormat, len(raw)-p.Offset)
	}
	return v, nil
}

func unpack(p *wrappers.Packer, depth int) (Value, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}
	prefix := p.UnpackByte()
	if p.Errored() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValueFormat, p.Err)
	}
	switch prefix {
	case prefixInt:
		return Int(int64(p.UnpackLong())), nil
	case prefixTrue:
		return Bool(true), nil
	case prefixFalse:
		return Bool(false), nil
	case prefixStandardPrincipal:
		return StandardPrincipal(p.UnpackStr()), nil
	case prefixContractPrincipal:
		issuer := p.UnpackStr()
		name := p.UnpackStr()
		return ContractIdentifier{Issuer: issuer, Name: name}, nil
	case prefixBuffer:
		return Buffer(p.UnpackBytes()), nil
	case prefixNone:
		return None, nil
	case prefixSome:
		inner, err := unpack(p, depth+1)
		if err != nil {
			return nil, err
		}
		return Some(inner), nil
	case prefixOk, prefixErr:
		inner, err := unpack(p, depth+1)
		if err != nil {
			return nil, err
		}
		return Response{Committed: prefix == prefixOk, Value: inner}, nil
	case prefixTuple:
		count := p.UnpackInt()
		if p.Errored() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValueFormat, p.Err)
		}
		if int(count) > len(p.Bytes)-p.Offset {
			return nil, fmt.Errorf("%w: tuple of %d fields", ErrInvalidValueFormat, count)
		}
		fields := make([]TupleField, 0, count)
		for i := uint32(0); i < count; i++ {
			name := p.UnpackStr()
			value, err := unpack(p, depth+1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, TupleField{Name: name, Value: value})
		}
		return NewTuple(fields...)
	default:
		return nil, fmt.Errorf("%w: unknown type prefix 0x%02x", ErrInvalidValueFormat, prefix)
	}
}
