package ledger

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
)

func TestKnownSelectors(t *testing.T) {
	cases := map[string]string{
		"transfer(address,uint256)":         "a9059cbb",
		"balanceOf(address)":                "70a08231",
		"approve(address,uint256)":          "095ea7b3",
		"allowance(address,address)":        "dd62ed3e",
		"decimals()":                        "313ce567",
	}
	for sig, want := range cases {
		if got := hex.EncodeToString(selector(sig)); got != want {
			t.Fatalf("selector(%q) = %s, want %s", sig, got, want)
		}
	}
}

func TestEncodeTransferCalldata(t *testing.T) {
	to := "0x1111111111111111111111111111111111111111"
	data, err := encodeCall("transfer(address,uint256)", argAddress(to), argUint(big.NewInt(5000)))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// selector + two 32-byte words
	if len(data) != 2+8+64+64 {
		t.Fatalf("calldata length = %d", len(data))
	}
	if !strings.HasPrefix(data, "0xa9059cbb") {
		t.Fatalf("missing transfer selector: %s", data)
	}
	if !strings.Contains(data, strings.TrimPrefix(to, "0x")) {
		t.Fatalf("recipient not embedded: %s", data)
	}
	if !strings.HasSuffix(data, "1388") { // 5000
		t.Fatalf("amount not embedded: %s", data)
	}
}

func TestEncodeDynamicString(t *testing.T) {
	data, err := encodeCall("createRequest(address,uint256,string)",
		argAddress("0x2222222222222222222222222222222222222222"),
		argUint(big.NewInt(1)),
		argString("lunch"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, err := decodeHex(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	body := raw[4:]

	// Head word 2 holds the offset of the string tail: 3 args * 32 bytes.
	offset := new(big.Int).SetBytes(body[2*wordSize : 3*wordSize]).Int64()
	if offset != 96 {
		t.Fatalf("string offset = %d, want 96", offset)
	}
	length := new(big.Int).SetBytes(body[offset : offset+wordSize]).Int64()
	if length != 5 {
		t.Fatalf("string length = %d, want 5", length)
	}
	if got := string(body[offset+wordSize : offset+wordSize+5]); got != "lunch" {
		t.Fatalf("string payload = %q", got)
	}
}

func TestReaderRoundTrip(t *testing.T) {
	data, err := encodeCall("x(address,uint256,string)",
		argAddress("0x00000000000000000000000000000000000000ff"),
		argUint(big.NewInt(42)),
		argString("hello world"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, _ := decodeHex(data)

	r := newReader(raw[4:])
	if addr := r.addr(0); addr != "0x00000000000000000000000000000000000000ff" {
		t.Fatalf("addr = %s", addr)
	}
	if v := r.int64At(1); v != 42 {
		t.Fatalf("uint = %d", v)
	}
	if s := r.str(2); s != "hello world" {
		t.Fatalf("str = %q", s)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("reader error: %v", err)
	}
}

func TestReaderOutOfRange(t *testing.T) {
	r := newReader([]byte{0x01, 0x02})
	_ = r.uint(0)
	if r.Err() == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestTopicID(t *testing.T) {
	id, err := topicID("0x0000000000000000000000000000000000000000000000000000000000000007")
	if err != nil || id != 7 {
		t.Fatalf("topicID = %d, %v", id, err)
	}
}

func TestEventTopicShape(t *testing.T) {
	topic := eventTopic("RequestCreated(uint256,address,address,uint256,string)")
	if len(topic) != 66 || !strings.HasPrefix(topic, "0x") {
		t.Fatalf("topic = %s", topic)
	}
}
