package signer

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/chainbridge-validator/core/internal/abivalue"
)

// SwapParams is the subset of the swap-initiation tuple argument the Signer
// needs, extracted by fixed position per spec.md §4.4(b)'s field table:
// idx 0 = dst_blockchain_id, 3 = second_path, 5 = token_out_min,
// 6 = new_address, 7 = swap_to_crypto, 8 = swap_exact_for,
// last = contract_function.
type SwapParams struct {
	DestBlockchainID uint64   `json:"dest_blockchain_id"`
	SecondPath       []string `json:"second_path"`
	TokenOutMin      string   `json:"token_out_min"`
	NewAddress       string   `json:"new_address"`
	SwapToCrypto     bool     `json:"swap_to_crypto"`
	SwapExactFor     bool     `json:"swap_exact_for"`
	ContractFunction string   `json:"contract_function"`
}

// ExtractSwapParams decodes the raw calldata of a swap-initiation
// transaction against the source routing contract's calldata ABI and pulls
// out the fixed-position fields the Signer needs, normalising any
// bytes32-embedded address along the way.
func ExtractSwapParams(calldataABI abi.ABI, data []byte) (*SwapParams, error) {
	fields, err := decodeTupleFields(calldataABI, data)
	if err != nil {
		return nil, err
	}
	if len(fields) < 9 {
		return nil, fmt.Errorf("signer: swap tuple has %d fields, expected at least 9", len(fields))
	}

	destID, err := fieldUint64(fields[0])
	if err != nil {
		return nil, fmt.Errorf("signer: dst_blockchain_id: %w", err)
	}

	secondPath, err := fieldHexList(fields[3])
	if err != nil {
		return nil, fmt.Errorf("signer: second_path: %w", err)
	}

	tokenOutMin, err := fieldBigInt(fields[5])
	if err != nil {
		return nil, fmt.Errorf("signer: token_out_min: %w", err)
	}

	newAddress, err := fieldHex(fields[6])
	if err != nil {
		return nil, fmt.Errorf("signer: new_address: %w", err)
	}

	swapToCrypto, err := fieldBool(fields[7])
	if err != nil {
		return nil, fmt.Errorf("signer: swap_to_crypto: %w", err)
	}

	swapExactFor, err := fieldBool(fields[8])
	if err != nil {
		return nil, fmt.Errorf("signer: swap_exact_for: %w", err)
	}

	contractFunction, err := fieldHex(fields[len(fields)-1])
	if err != nil {
		return nil, fmt.Errorf("signer: contract_function: %w", err)
	}

	return &SwapParams{
		DestBlockchainID: destID,
		SecondPath:       secondPath,
		TokenOutMin:      tokenOutMin.String(),
		NewAddress:       newAddress,
		SwapToCrypto:     swapToCrypto,
		SwapExactFor:     swapExactFor,
		ContractFunction: contractFunction,
	}, nil
}

// decodeTupleFields resolves the called method by its 4-byte selector and
// unpacks its single tuple-typed argument into a flat, positionally ordered
// slice of Value, mirroring decode_function_input's reliance on the
// contract's own ABI for a dynamically shaped tuple.
func decodeTupleFields(calldataABI abi.ABI, data []byte) ([]abivalue.Value, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("signer: calldata too short to carry a function selector")
	}

	method, err := calldataABI.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("signer: unrecognised function selector %x: %w", data[:4], err)
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("signer: unpack calldata for %s: %w", method.Name, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("signer: expected a single tuple argument for %s, got %d", method.Name, len(values))
	}

	tuple := reflect.ValueOf(values[0])
	for tuple.Kind() == reflect.Ptr {
		tuple = tuple.Elem()
	}
	if tuple.Kind() != reflect.Struct {
		return nil, fmt.Errorf("signer: %s's argument is not a tuple", method.Name)
	}

	n := tuple.NumField()
	fields := make([]abivalue.Value, n)
	for i := 0; i < n; i++ {
		v, err := abivalue.FromAny(tuple.Field(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("signer: field %d of %s: %w", i, method.Name, err)
		}
		fields[i] = normalizeAddressLike(v)
	}
	return fields, nil
}

// normalizeAddressLike collapses a 32-byte value whose top 12 bytes are zero
// into the plain 20-byte address it encodes, matching
// decode_function_input's handling of address parameters padded to a full
// word by some routing contracts.
func normalizeAddressLike(v abivalue.Value) abivalue.Value {
	if v.Kind != abivalue.KindBytes || len(v.Bytes) != 32 {
		return v
	}
	addr, ok := abivalue.NormalizeEmbeddedAddress(v.Bytes)
	if !ok {
		return v
	}
	return abivalue.Value{Kind: abivalue.KindAddress, Address: addr}
}

func fieldUint64(v abivalue.Value) (uint64, error) {
	n, err := fieldBigInt(v)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

func fieldBigInt(v abivalue.Value) (*big.Int, error) {
	if v.Kind != abivalue.KindInt || v.Int == nil {
		return nil, fmt.Errorf("expected an integer value, got kind %v", v.Kind)
	}
	return v.Int, nil
}

func fieldBool(v abivalue.Value) (bool, error) {
	n, err := fieldBigInt(v)
	if err != nil {
		return false, err
	}
	return n.Sign() != 0, nil
}

func fieldHex(v abivalue.Value) (string, error) {
	switch v.Kind {
	case abivalue.KindAddress:
		return v.Address.Hex(), nil
	case abivalue.KindBytes:
		return "0x" + hex.EncodeToString(v.Bytes), nil
	default:
		return "", fmt.Errorf("expected an address or bytes value, got kind %v", v.Kind)
	}
}

func fieldHexList(v abivalue.Value) ([]string, error) {
	if v.Kind != abivalue.KindList {
		return nil, fmt.Errorf("expected a list value, got kind %v", v.Kind)
	}
	out := make([]string, len(v.List))
	for i, elem := range v.List {
		h, err := fieldHex(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = h
	}
	return out, nil
}
