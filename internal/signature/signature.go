// Package signature implements Ed25519 signing and verification of flow
// files against a local trust store of public keys.
package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// Result is the outcome of a Verify call.
type Result int

const (
	OK Result = iota
	UntrustedKey
	BadSignature
	Malformed
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case UntrustedKey:
		return "UntrustedKey"
	case BadSignature:
		return "BadSignature"
	case Malformed:
		return "Malformed"
	default:
		return "unknown"
	}
}

// Sidecar is the JSON signature sidecar format, co-located with a flow
// file as "<flow>.sig".
type Sidecar struct {
	Version   int    `json:"version"`
	Algorithm string `json:"algorithm"`
	KeyID     string `json:"key_id"`
	Signature string `json:"signature"`
}

const sidecarVersion = 1
const sidecarAlgorithm = "ed25519"

// Sign produces a sidecar for fileBytes using the given PEM-encoded
// Ed25519 private key. The signed payload is the raw file bytes, never
// a parsed representation.
func Sign(fileBytes []byte, privateKeyPEM []byte, keyID string) ([]byte, error) {
	if keyID == "" {
		return nil, fmt.Errorf("signature: key_id must not be empty")
	}
	priv, err := decodePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(priv, fileBytes)
	sc := Sidecar{
		Version:   sidecarVersion,
		Algorithm: sidecarAlgorithm,
		KeyID:     keyID,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}
	return json.MarshalIndent(sc, "", "  ")
}

// Verify checks sidecarBytes against fileBytes using a public key looked
// up in store by the sidecar's key_id.
func Verify(fileBytes, sidecarBytes []byte, store *TrustStore) Result {
	var sc Sidecar
	if err := json.Unmarshal(sidecarBytes, &sc); err != nil {
		return Malformed
	}
	if sc.Version != sidecarVersion || sc.Algorithm != sidecarAlgorithm || sc.KeyID == "" || sc.Signature == "" {
		return Malformed
	}
	sig, err := base64.StdEncoding.DecodeString(sc.Signature)
	if err != nil {
		return Malformed
	}

	pub, err := store.Load(sc.KeyID)
	if err != nil {
		return UntrustedKey
	}

	if !ed25519.Verify(pub, fileBytes, sig) {
		return BadSignature
	}
	return OK
}

// GenerateKeyPair creates a new Ed25519 key pair and returns both halves
// PEM-encoded. The private key PEM must be written with owner-only
// permissions by the caller.
func GenerateKeyPair() (publicPEM, privatePEM []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("signature: generate key pair: %w", err)
	}
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv})
	return publicPEM, privatePEM, nil
}

func decodePrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("signature: no PEM block found in private key")
	}
	if len(block.Bytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signature: private key has wrong size %d", len(block.Bytes))
	}
	return ed25519.PrivateKey(block.Bytes), nil
}

func decodePublicKey(raw []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("signature: no PEM block found in public key")
	}
	if len(block.Bytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signature: public key has wrong size %d", len(block.Bytes))
	}
	return ed25519.PublicKey(block.Bytes), nil
}

// TrustStore is a directory of PEM public keys named "<key_id>.pem". The
// process may read any key but writes only via an explicit Trust call.
type TrustStore struct {
	Dir string
}

// NewTrustStore returns a TrustStore rooted at dir, creating it with
// owner-only permissions if it does not already exist.
func NewTrustStore(dir string) (*TrustStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("signature: create trust store %s: %w", dir, err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return nil, fmt.Errorf("signature: harden trust store %s: %w", dir, err)
	}
	return &TrustStore{Dir: dir}, nil
}

func (t *TrustStore) path(keyID string) string {
	return filepath.Join(t.Dir, keyID+".pem")
}

// Load reads and decodes the public key named keyID.
func (t *TrustStore) Load(keyID string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(t.path(keyID))
	if err != nil {
		return nil, fmt.Errorf("signature: key %q not in trust store: %w", keyID, err)
	}
	return decodePublicKey(raw)
}

// Trust writes publicKeyPEM into the store under keyID, the only
// mutating operation the trust store permits during normal operation.
func (t *TrustStore) Trust(keyID string, publicKeyPEM []byte) error {
	if _, err := decodePublicKey(publicKeyPEM); err != nil {
		return err
	}
	return os.WriteFile(t.path(keyID), publicKeyPEM, 0o600)
}

// Has reports whether keyID exists in the store.
func (t *TrustStore) Has(keyID string) bool {
	_, err := os.Stat(t.path(keyID))
	return err == nil
}
