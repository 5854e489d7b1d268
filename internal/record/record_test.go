package record

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{Timestamp: 0, KeySize: 0, ValueSize: 0},
		{Timestamp: 1732999999, KeySize: 3, ValueSize: 128},
		{Timestamp: 4294967295, KeySize: 4294967295, ValueSize: 4294967295},
	}

	for _, h := range cases {
		buf := EncodeHeader(h)
		got, ok := DecodeHeader(buf[:])
		if !ok {
			t.Fatalf("DecodeHeader(%v) reported short buffer", h)
		}
		if diff := cmp.Diff(h, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecodeHeaderShortBuffer(t *testing.T) {
	for _, n := range []int{0, 1, 11} {
		if _, ok := DecodeHeader(make([]byte, n)); ok {
			t.Errorf("DecodeHeader with %d-byte buffer should report short read", n)
		}
	}
}

func TestIsTombstone(t *testing.T) {
	if !(Header{ValueSize: 0}).IsTombstone() {
		t.Error("ValueSize 0 should be a tombstone")
	}
	if (Header{ValueSize: 1}).IsTombstone() {
		t.Error("ValueSize 1 should not be a tombstone")
	}
}
