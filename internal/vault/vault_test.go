package vault

import "testing"

func key(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := NewSingleKey(key(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sealed, err := v.Seal("s3cr3t-password")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "s3cr3t-password" {
		t.Fatalf("sealed ciphertext must not equal the plaintext")
	}

	opened, err := v.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != "s3cr3t-password" {
		t.Fatalf("expected round trip to return original plaintext, got %q", opened)
	}
}

func TestOpenCorruptCiphertextFailsWithCryptoError(t *testing.T) {
	v, _ := NewSingleKey(key(2))
	if _, err := v.Open("not-valid-base64-or-ciphertext!!"); err == nil {
		t.Fatalf("expected error opening corrupt ciphertext")
	} else if _, ok := err.(*CryptoError); !ok {
		t.Fatalf("expected *CryptoError, got %T: %v", err, err)
	}
}

func TestOldGenerationStillOpensAfterRotation(t *testing.T) {
	v1, _ := New([]Key{{Generation: 1, Secret: key(3)}})
	sealed, err := v1.Seal("old-password")
	if err != nil {
		t.Fatalf("Seal with generation 1: %v", err)
	}

	// Simulate a rotation: a new vault knows both generation 1 and 2, seals
	// with 2 going forward but can still open ciphertexts sealed under 1.
	v2, err := New([]Key{
		{Generation: 1, Secret: key(3)},
		{Generation: 2, Secret: key(4)},
	})
	if err != nil {
		t.Fatalf("New with two generations: %v", err)
	}

	opened, err := v2.Open(sealed)
	if err != nil {
		t.Fatalf("expected to open generation-1 ciphertext after rotation: %v", err)
	}
	if opened != "old-password" {
		t.Fatalf("got %q, want %q", opened, "old-password")
	}

	newSealed, err := v2.Seal("new-password")
	if err != nil {
		t.Fatalf("Seal after rotation: %v", err)
	}
	if newSealed == sealed {
		t.Fatalf("expected a fresh ciphertext")
	}
}

func TestRejectsWrongKeySize(t *testing.T) {
	if _, err := New([]Key{{Generation: 1, Secret: []byte("too-short")}}); err == nil {
		t.Fatalf("expected error for non-32-byte key")
	}
}
