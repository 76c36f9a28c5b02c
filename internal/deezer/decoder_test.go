package deezer

import (
	"bytes"
	"io"
	"testing"

	"golang.org/x/crypto/blowfish"
)

// encryptBlock is the test-only inverse of decryptBlock, used to build a
// synthetic encrypted stream: CBC(Blowfish, key, IV=secretIV, plaintext).
func encryptBlock(key, plain []byte) []byte {
	c, err := blowfish.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(plain))
	prev := secretIV[:]
	enc := make([]byte, blowfish.BlockSize)
	for off := 0; off < len(plain); off += blowfish.BlockSize {
		for i := 0; i < blowfish.BlockSize; i++ {
			enc[i] = plain[off+i] ^ prev[i]
		}
		c.Encrypt(out[off:off+blowfish.BlockSize], enc)
		prev = out[off : off+blowfish.BlockSize]
	}
	return out
}

// buildStream constructs a synthetic stream where blocks 0,3,6,... are
// encrypted and the rest are plaintext, matching the CDN layout.
func buildStream(key []byte, plaintexts [][]byte) []byte {
	var out bytes.Buffer
	for i, p := range plaintexts {
		if i%3 == 0 && len(p) == blockSize {
			out.Write(encryptBlock(key, p))
		} else {
			out.Write(p)
		}
	}
	return out.Bytes()
}

func TestStreamDecoderRoundTrip(t *testing.T) {
	const trackID = uint64(123456789)
	key := DeriveKey(trackID)

	var plaintexts [][]byte
	for i := 0; i < 9; i++ {
		block := make([]byte, blockSize)
		for j := range block {
			block[j] = byte((i*31 + j) % 256)
		}
		plaintexts = append(plaintexts, block)
	}

	encoded := buildStream(key, plaintexts)
	dec := NewStreamDecoder(bytes.NewReader(encoded), trackID)

	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	var want []byte
	for _, p := range plaintexts {
		want = append(want, p...)
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}

func TestStreamDecoderShortFinalBlockPassesThroughUnencrypted(t *testing.T) {
	const trackID = uint64(42)
	key := DeriveKey(trackID)

	full := make([]byte, blockSize)
	for i := range full {
		full[i] = byte(i % 256)
	}
	short := []byte("trailing partial block")

	encoded := buildStream(key, [][]byte{full, short})
	dec := NewStreamDecoder(bytes.NewReader(encoded), trackID)

	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	want := append(append([]byte{}, full...), short...)
	if !bytes.Equal(got, want) {
		t.Fatalf("short-block round trip mismatch: got %q", got)
	}
}

func TestIsSeekableFalse(t *testing.T) {
	dec := NewStreamDecoder(bytes.NewReader(nil), 1)
	if dec.IsSeekable() {
		t.Fatal("expected IsSeekable() == false")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a := DeriveKey(987654321)
	b := DeriveKey(987654321)
	if !bytes.Equal(a, b) {
		t.Fatal("DeriveKey should be deterministic for the same track id")
	}
	c := DeriveKey(987654322)
	if bytes.Equal(a, c) {
		t.Fatal("DeriveKey should differ across track ids")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16-byte key, got %d", len(a))
	}
}
