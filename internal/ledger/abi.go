package ledger

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Minimal ABI codec for the handful of shapes these contracts use: address,
// uint256, bool and string parameters, plus tuple and tuple-array returns.
// Calldata is built the same way the chat engine has always built it: a
// 4-byte Keccak selector followed by 32-byte words.

const wordSize = 32

func keccak(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// selector returns the 4-byte function selector for a canonical signature
// like "transfer(address,uint256)".
func selector(signature string) []byte {
	return keccak([]byte(signature))[:4]
}

// eventTopic returns the 0x-prefixed topic hash for an event signature.
func eventTopic(signature string) string {
	return "0x" + hex.EncodeToString(keccak([]byte(signature)))
}

type argKind int

const (
	kindAddress argKind = iota
	kindUint
	kindString
)

type abiArg struct {
	kind argKind
	addr string
	num  *big.Int
	str  string
}

func argAddress(address string) abiArg { return abiArg{kind: kindAddress, addr: address} }
func argUint(v *big.Int) abiArg        { return abiArg{kind: kindUint, num: v} }
func argUint64(v int64) abiArg         { return abiArg{kind: kindUint, num: big.NewInt(v)} }
func argString(s string) abiArg        { return abiArg{kind: kindString, str: s} }

// encodeCall builds 0x-prefixed calldata: selector, one head word per
// argument, then tails for dynamic arguments (standard head/tail layout).
func encodeCall(signature string, args ...abiArg) (string, error) {
	head := make([]byte, 0, len(args)*wordSize)
	var tail []byte
	headSize := len(args) * wordSize

	for _, a := range args {
		switch a.kind {
		case kindAddress:
			w, err := addressWord(a.addr)
			if err != nil {
				return "", err
			}
			head = append(head, w...)
		case kindUint:
			if a.num == nil || a.num.Sign() < 0 || a.num.BitLen() > 256 {
				return "", fmt.Errorf("uint256 out of range")
			}
			head = append(head, leftPad(a.num.Bytes())...)
		case kindString:
			offset := big.NewInt(int64(headSize + len(tail)))
			head = append(head, leftPad(offset.Bytes())...)
			tail = append(tail, leftPad(big.NewInt(int64(len(a.str))).Bytes())...)
			tail = append(tail, rightPad([]byte(a.str))...)
		}
	}

	data := append(selector(signature), head...)
	data = append(data, tail...)
	return "0x" + hex.EncodeToString(data), nil
}

func addressWord(address string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(address), "0x"))
	if err != nil || len(raw) != 20 {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	return leftPad(raw), nil
}

func leftPad(b []byte) []byte {
	if len(b) > wordSize {
		b = b[len(b)-wordSize:]
	}
	padded := make([]byte, wordSize)
	copy(padded[wordSize-len(b):], b)
	return padded
}

func rightPad(b []byte) []byte {
	n := (len(b) + wordSize - 1) / wordSize * wordSize
	padded := make([]byte, n)
	copy(padded, b)
	return padded
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// abiReader walks return data word by word from a base offset. Errors stick:
// callers check Err once after reading every field.
type abiReader struct {
	data []byte
	base int
	err  error
}

func newReader(data []byte) *abiReader {
	return &abiReader{data: data}
}

func (r *abiReader) word(i int) []byte {
	if r.err != nil {
		return nil
	}
	start := r.base + i*wordSize
	if start < 0 || start+wordSize > len(r.data) {
		r.err = fmt.Errorf("abi: word %d out of range (len %d)", i, len(r.data))
		return nil
	}
	return r.data[start : start+wordSize]
}

func (r *abiReader) uint(i int) *big.Int {
	w := r.word(i)
	if w == nil {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(w)
}

func (r *abiReader) int64At(i int) int64 {
	return r.uint(i).Int64()
}

func (r *abiReader) addr(i int) string {
	w := r.word(i)
	if w == nil {
		return ""
	}
	return "0x" + hex.EncodeToString(w[12:])
}

func (r *abiReader) boolAt(i int) bool {
	w := r.word(i)
	if w == nil {
		return false
	}
	return w[wordSize-1] != 0
}

// str reads a dynamic string whose head word i holds an offset relative to
// this reader's base.
func (r *abiReader) str(i int) string {
	offset := int(r.uint(i).Int64())
	if r.err != nil {
		return ""
	}
	start := r.base + offset
	if start+wordSize > len(r.data) {
		r.err = fmt.Errorf("abi: string offset %d out of range", offset)
		return ""
	}
	length := int(new(big.Int).SetBytes(r.data[start : start+wordSize]).Int64())
	if length < 0 || start+wordSize+length > len(r.data) {
		r.err = fmt.Errorf("abi: string length %d out of range", length)
		return ""
	}
	return string(r.data[start+wordSize : start+wordSize+length])
}

// tuple follows the offset in head word i to a nested reader.
func (r *abiReader) tuple(i int) *abiReader {
	offset := int(r.uint(i).Int64())
	if r.err != nil {
		return &abiReader{err: r.err}
	}
	return &abiReader{data: r.data, base: r.base + offset}
}

// tupleArray follows the offset in head word i to an array of dynamic tuples
// and returns one reader per element.
func (r *abiReader) tupleArray(i int) []*abiReader {
	arr := r.tuple(i)
	if arr.err != nil {
		r.err = arr.err
		return nil
	}
	length := int(arr.uint(0).Int64())
	if arr.err != nil || length < 0 || length > 1<<20 {
		r.err = fmt.Errorf("abi: bad array length")
		return nil
	}
	elemBase := arr.base + wordSize
	elems := make([]*abiReader, 0, length)
	for e := 0; e < length; e++ {
		inner := &abiReader{data: r.data, base: elemBase}
		offset := int(inner.uint(e).Int64())
		if inner.err != nil {
			r.err = inner.err
			return nil
		}
		elems = append(elems, &abiReader{data: r.data, base: elemBase + offset})
	}
	return elems
}

// uintArray follows the offset in head word i to a uint256[].
func (r *abiReader) uintArray(i int) []*big.Int {
	arr := r.tuple(i)
	if arr.err != nil {
		r.err = arr.err
		return nil
	}
	length := int(arr.uint(0).Int64())
	if arr.err != nil || length < 0 || length > 1<<20 {
		r.err = fmt.Errorf("abi: bad array length")
		return nil
	}
	values := make([]*big.Int, 0, length)
	for e := 0; e < length; e++ {
		values = append(values, arr.uint(1+e))
	}
	return values
}

func (r *abiReader) Err() error { return r.err }

// topicID extracts the integer id carried in an indexed event topic.
func topicID(topic string) (int64, error) {
	raw, err := decodeHex(topic)
	if err != nil {
		return 0, fmt.Errorf("decode topic: %w", err)
	}
	return new(big.Int).SetBytes(raw).Int64(), nil
}
