package signature

import (
	"path/filepath"
	"testing"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	pubPEM, privPEM, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	store, err := NewTrustStore(filepath.Join(t.TempDir(), "trust"))
	if err != nil {
		t.Fatalf("NewTrustStore() error = %v", err)
	}
	if err := store.Trust("key-a", pubPEM); err != nil {
		t.Fatalf("Trust() error = %v", err)
	}

	fileBytes := []byte(`{"steps":[]}`)
	sidecar, err := Sign(fileBytes, privPEM, "key-a")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if got := Verify(fileBytes, sidecar, store); got != OK {
		t.Errorf("Verify() = %v, want OK", got)
	}
}

func TestVerifyUntrustedKey(t *testing.T) {
	_, privPEM, _ := GenerateKeyPair()
	store, _ := NewTrustStore(filepath.Join(t.TempDir(), "trust"))

	fileBytes := []byte("flow")
	sidecar, err := Sign(fileBytes, privPEM, "unknown-key")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if got := Verify(fileBytes, sidecar, store); got != UntrustedKey {
		t.Errorf("Verify() = %v, want UntrustedKey", got)
	}
}

func TestVerifyBadSignature(t *testing.T) {
	pubPEM, privPEM, _ := GenerateKeyPair()
	store, _ := NewTrustStore(filepath.Join(t.TempDir(), "trust"))
	store.Trust("key-a", pubPEM)

	sidecar, err := Sign([]byte("original"), privPEM, "key-a")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if got := Verify([]byte("tampered"), sidecar, store); got != BadSignature {
		t.Errorf("Verify() = %v, want BadSignature", got)
	}
}

func TestVerifyMalformed(t *testing.T) {
	store, _ := NewTrustStore(filepath.Join(t.TempDir(), "trust"))
	if got := Verify([]byte("flow"), []byte("not json"), store); got != Malformed {
		t.Errorf("Verify() = %v, want Malformed", got)
	}
}

func TestTrustStoreHas(t *testing.T) {
	pubPEM, _, _ := GenerateKeyPair()
	store, _ := NewTrustStore(filepath.Join(t.TempDir(), "trust"))
	if store.Has("key-a") {
		t.Fatal("expected key-a to be absent before Trust")
	}
	if err := store.Trust("key-a", pubPEM); err != nil {
		t.Fatalf("Trust() error = %v", err)
	}
	if !store.Has("key-a") {
		t.Fatal("expected key-a to be present after Trust")
	}
}
