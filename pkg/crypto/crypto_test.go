package crypto

import "testing"

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash equals the password")
	}
	if !VerifyPassword("correct horse", hash) {
		t.Error("expected password to verify")
	}
	if VerifyPassword("battery staple", hash) {
		t.Error("wrong password verified")
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(32)
	if err != nil {
		t.Fatalf("GenerateRandomString: %v", err)
	}
	b, _ := GenerateRandomString(32)
	if a == b {
		t.Error("two random strings are equal")
	}
	if len(a) != 43 {
		t.Errorf("got length %d, want 43", len(a))
	}
}
