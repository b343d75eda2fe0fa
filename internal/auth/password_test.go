package auth

import "testing"

func TestHashAndVerify(t *testing.T) {
	hasher := NewHasher(4) // min cost keeps the test fast

	hash, err := hasher.Hash("s3cret-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !hasher.Verify("s3cret-password", hash) {
		t.Fatalf("expected verification to succeed")
	}
	if hasher.Verify("wrong-password", hash) {
		t.Fatalf("expected verification to fail for wrong password")
	}
}

func TestHashIsSalted(t *testing.T) {
	hasher := NewHasher(4)

	first, err := hasher.Hash("same-plaintext")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	second, err := hasher.Hash("same-plaintext")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct hashes for repeated plaintext")
	}
	if !hasher.Verify("same-plaintext", first) || !hasher.Verify("same-plaintext", second) {
		t.Fatalf("both hashes must verify")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := NewHasher(0)

	for _, stored := range []string{"", "not-a-bcrypt-hash", "$2a$xx$broken"} {
		if hasher.Verify("anything", stored) {
			t.Fatalf("expected false for stored hash %q", stored)
		}
	}
}

func TestHashEmptyPassword(t *testing.T) {
	hasher := NewHasher(0)
	if _, err := hasher.Hash(""); err == nil {
		t.Fatalf("expected error for empty password")
	}
}
