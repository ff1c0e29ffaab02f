// Package abivalue represents decoded EVM ABI values as a canonical JSON
// tree, independent of the concrete Go type abi.Unpack produced for them.
package abivalue

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind tags the concrete shape a Value holds.
type Kind string

const (
	KindInt     Kind = "int"
	KindBytes   Kind = "bytes"
	KindAddress Kind = "address"
	KindList    Kind = "list"
	KindMap     Kind = "map"
)

// Value is a tagged union over the handful of shapes go-ethereum's abi
// package can hand back for a decoded calldata argument or event field.
type Value struct {
	Kind    Kind              `json:"kind"`
	Int     *big.Int          `json:"int,omitempty"`
	Bytes   []byte            `json:"bytes,omitempty"`
	Address common.Address    `json:"address,omitempty"`
	List    []Value           `json:"list,omitempty"`
	Map     map[string]Value  `json:"map,omitempty"`
}

// FromAny converts a value produced by abi.Arguments.Unpack (or an event
// log's decoded args) into a Value tree. Unsupported Go types are reported
// as an error rather than silently dropped.
func FromAny(v interface{}) (Value, error) {
	switch t := v.(type) {
	case *big.Int:
		return Value{Kind: KindInt, Int: t}, nil
	case big.Int:
		cp := new(big.Int).Set(&t)
		return Value{Kind: KindInt, Int: cp}, nil
	case [32]byte:
		return Value{Kind: KindBytes, Bytes: append([]byte(nil), t[:]...)}, nil
	case []byte:
		return Value{Kind: KindBytes, Bytes: append([]byte(nil), t...)}, nil
	case common.Address:
		return Value{Kind: KindAddress, Address: t}, nil
	case string:
		return Value{Kind: KindBytes, Bytes: []byte(t)}, nil
	case bool:
		if t {
			return Value{Kind: KindInt, Int: big.NewInt(1)}, nil
		}
		return Value{Kind: KindInt, Int: big.NewInt(0)}, nil
	case uint8, uint16, uint32, uint64, int8, int16, int32, int64:
		return Value{Kind: KindInt, Int: toBigInt(t)}, nil
	default:
		return fromReflect(v)
	}
}

func toBigInt(v interface{}) *big.Int {
	switch t := v.(type) {
	case uint8:
		return new(big.Int).SetUint64(uint64(t))
	case uint16:
		return new(big.Int).SetUint64(uint64(t))
	case uint32:
		return new(big.Int).SetUint64(uint64(t))
	case uint64:
		return new(big.Int).SetUint64(t)
	case int8:
		return big.NewInt(int64(t))
	case int16:
		return big.NewInt(int64(t))
	case int32:
		return big.NewInt(int64(t))
	case int64:
		return big.NewInt(t)
	default:
		return big.NewInt(0)
	}
}

// fromReflect handles slices (tuple arrays) produced by the abi decoder for
// list-typed parameters, e.g. address[] or uint256[].
func fromReflect(v interface{}) (Value, error) {
	switch t := v.(type) {
	case []common.Address:
		list := make([]Value, 0, len(t))
		for _, a := range t {
			list = append(list, Value{Kind: KindAddress, Address: a})
		}
		return Value{Kind: KindList, List: list}, nil
	case []*big.Int:
		list := make([]Value, 0, len(t))
		for _, n := range t {
			list = append(list, Value{Kind: KindInt, Int: n})
		}
		return Value{Kind: KindList, List: list}, nil
	case []string:
		list := make([]Value, 0, len(t))
		for _, s := range t {
			list = append(list, Value{Kind: KindBytes, Bytes: []byte(s)})
		}
		return Value{Kind: KindList, List: list}, nil
	default:
		return Value{}, fmt.Errorf("abivalue: unsupported decoded type %T", v)
	}
}

// NormalizeEmbeddedAddress rewrites a 32-byte hex value whose high 12 bytes
// are zero into its trailing 20-byte address, matching
// Contract.decode_function_input's normalization of padded address
// parameters in the original implementation.
func NormalizeEmbeddedAddress(b []byte) (common.Address, bool) {
	if len(b) != 32 {
		return common.Address{}, false
	}
	for _, z := range b[:12] {
		if z != 0 {
			return common.Address{}, false
		}
	}
	var addr common.Address
	copy(addr[:], b[12:])
	return addr, true
}

// MarshalJSON renders the tagged union as a plain, human-readable JSON value
// chosen by kind; the kind tag itself is not written.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		if v.Int == nil {
			return json.Marshal("0")
		}
		return json.Marshal(v.Int.String())
	case KindBytes:
		return json.Marshal(common.Bytes2Hex(v.Bytes))
	case KindAddress:
		return json.Marshal(v.Address.Hex())
	case KindList:
		return json.Marshal(v.List)
	case KindMap:
		return json.Marshal(v.Map)
	default:
		return json.Marshal(nil)
	}
}
