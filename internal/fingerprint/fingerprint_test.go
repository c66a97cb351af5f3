package fingerprint

import (
	"math/big"
	"testing"
)

// Digests below are sha256 of the plain decimal string, as produced by
// `printf '%s' N | sha256sum`. Existing stores were written with exactly
// this derivation, so these are load-bearing.
func TestNewKnownDigests(t *testing.T) {
	cases := []struct {
		n   string
		hex string
	}{
		{"1", "6b86b273ff34fce19d6b804eff5a3f5747ada4eaa22f1d49c01e52ddb7875b4b"},
		{"27", "670671cd97404156226e507973f2ab8330d3022ca96e0c93bdbdb320c41adcaf"},
		{"837799", "78a262dd40eba0f7195686ec7f3891a39437523456f8d16fa9065a34409eeac6"},
		{"10000000000", "e476a1537b03d06db3ffffdbe4ac07a137333c5f6ef58d7375a4238751d7c3d8"},
	}
	for _, tc := range cases {
		n, ok := new(big.Int).SetString(tc.n, 10)
		if !ok {
			t.Fatalf("bad test input %q", tc.n)
		}
		if got := New(n).Hex(); got != tc.hex {
			t.Errorf("New(%s) = %s, want %s", tc.n, got, tc.hex)
		}
	}
}

func TestNewDeterministic(t *testing.T) {
	a, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	b, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	if New(a) != New(b) {
		t.Fatal("equal values produced different fingerprints")
	}

	c := new(big.Int).Add(b, big.NewInt(1))
	if New(a) == New(c) {
		t.Fatal("adjacent values produced the same fingerprint")
	}
}

func TestNewDoesNotMutateInput(t *testing.T) {
	n := big.NewInt(27)
	New(n)
	if n.Cmp(big.NewInt(27)) != 0 {
		t.Fatalf("input mutated: %s", n)
	}
}

func TestFromBytes(t *testing.T) {
	fp := New(big.NewInt(42))
	back, err := FromBytes(fp.Bytes())
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if back != fp {
		t.Fatal("round trip changed the digest")
	}

	if _, err := FromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short input")
	}
	if _, err := FromBytes(make([]byte, 64)); err == nil {
		t.Fatal("expected error for long input")
	}
}
