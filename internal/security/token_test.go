package security

import "testing"

func TestTokenGenerator(t *testing.T) {
	gen := DefaultTokenGenerator{}

	tok, hash, err := gen.New()
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if tok == "" || hash == "" {
		t.Fatalf("expected non-empty token and hash")
	}
	if tok == hash {
		t.Fatalf("hash must differ from token")
	}
	if HashToken(tok) != hash {
		t.Fatalf("hash mismatch for generated token")
	}

	tok2, _, err := gen.New()
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if tok == tok2 {
		t.Fatalf("expected unique tokens")
	}
}
