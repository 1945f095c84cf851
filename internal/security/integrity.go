// Package security signs outgoing dashboard payloads so downstream
// consumers can verify they were produced by this service and not
// altered in transit.
package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
)

// PayloadSigner attaches ECDSA-P256 signatures to JSON payloads.
type PayloadSigner struct {
	privateKey       *ecdsa.PrivateKey
	publicKeyEncoded string
	validity         time.Duration
}

// NewPayloadSigner creates a signer with a fresh key pair. validity
// bounds how long a signature is accepted; zero means one hour.
func NewPayloadSigner(validity time.Duration) (*PayloadSigner, error) {
	if validity <= 0 {
		validity = time.Hour
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}

	publicKeyBytes := elliptic.Marshal(elliptic.P256(), privateKey.PublicKey.X, privateKey.PublicKey.Y)
	publicKeyEncoded := base64.StdEncoding.EncodeToString(publicKeyBytes)

	logrus.Infof("Payload signer initialized with public key %s...", publicKeyEncoded[:16])
	return &PayloadSigner{
		privateKey:       privateKey,
		publicKeyEncoded: publicKeyEncoded,
		validity:         validity,
	}, nil
}

// Sign wraps the payload with an ECDSA-P256-SHA256 signature block
// under the "_signature" key.
func (ps *PayloadSigner) Sign(payload any) (map[string]any, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	hash := sha256.Sum256(payloadBytes)
	r, s, err := ecdsa.Sign(rand.Reader, ps.privateKey, hash[:])
	if err != nil {
		return nil, fmt.Errorf("signing payload: %w", err)
	}

	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])

	var wrapped map[string]any
	if err := json.Unmarshal(payloadBytes, &wrapped); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	// Timestamps are nanosecond unix values so sub-second validity
	// windows stay expressible.
	now := time.Now()
	wrapped["_signature"] = map[string]any{
		"signature":  base64.StdEncoding.EncodeToString(signature),
		"publicKey":  ps.publicKeyEncoded,
		"algorithm":  "ECDSA-P256-SHA256",
		"timestamp":  now.UnixNano(),
		"validUntil": now.Add(ps.validity).UnixNano(),
	}
	return wrapped, nil
}

// Verify checks the signature block of a payload produced by Sign. It
// returns an error for malformed blocks and false for a bad or expired
// signature.
func (ps *PayloadSigner) Verify(signed map[string]any) (bool, error) {
	meta, ok := signed["_signature"].(map[string]any)
	if !ok {
		return false, fmt.Errorf("signature block missing")
	}

	signatureStr, ok := meta["signature"].(string)
	if !ok {
		return false, fmt.Errorf("invalid signature format")
	}
	publicKeyStr, ok := meta["publicKey"].(string)
	if !ok {
		return false, fmt.Errorf("invalid public key format")
	}
	validUntil, ok := asUnixNano(meta["validUntil"])
	if !ok {
		return false, fmt.Errorf("invalid validUntil format")
	}
	if time.Now().After(time.Unix(0, validUntil)) {
		return false, fmt.Errorf("signature expired at %v", time.Unix(0, validUntil))
	}

	signatureBytes, err := base64.StdEncoding.DecodeString(signatureStr)
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}
	if len(signatureBytes) != 64 {
		return false, fmt.Errorf("invalid signature length %d", len(signatureBytes))
	}

	publicKeyBytes, err := base64.StdEncoding.DecodeString(publicKeyStr)
	if err != nil {
		return false, fmt.Errorf("decoding public key: %w", err)
	}
	x, y := elliptic.Unmarshal(elliptic.P256(), publicKeyBytes)
	if x == nil {
		return false, fmt.Errorf("unmarshaling public key")
	}
	publicKey := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}

	// The hash covers the payload exactly as it was signed, without
	// the signature block.
	payload := make(map[string]any, len(signed)-1)
	for k, v := range signed {
		if k != "_signature" {
			payload[k] = v
		}
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshaling payload: %w", err)
	}
	hash := sha256.Sum256(payloadBytes)

	r := new(big.Int).SetBytes(signatureBytes[:32])
	s := new(big.Int).SetBytes(signatureBytes[32:])
	return ecdsa.Verify(publicKey, hash[:], r, s), nil
}

// PublicKey returns the base64-encoded public key for out-of-band
// distribution.
func (ps *PayloadSigner) PublicKey() string {
	return ps.publicKeyEncoded
}

// asUnixNano reads a nanosecond unix timestamp that may arrive as
// int64 (fresh map) or float64 (after a JSON round trip). The float64
// form loses sub-microsecond precision, which is immaterial for an
// expiry check.
func asUnixNano(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}
