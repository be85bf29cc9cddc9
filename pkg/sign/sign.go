// Package sign verifies the detached SSH signatures registry-origin pins
// carry over their manifest bytes (spec.md §7 ArtifactChecksumChanged /
// ArtifactInvalidChecksum). The signature encoding mirrors the teacher's
// own commit-signing format (cmd/got/signing_ssh.go's "sshsig-v1" prefix),
// generalized from signing a commit payload to signing a manifest's bytes.
package sign

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

const signaturePrefix = "sshsig-v1"

// InvalidSignatureError reports a signature that failed to parse or verify
// against the manifest bytes it claims to cover.
type InvalidSignatureError struct {
	Reason string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("artifact signature invalid: %s", e.Reason)
}

// UntrustedSignerError reports a signature whose signing key is not among
// the configured trusted keys.
type UntrustedSignerError struct {
	Fingerprint string
}

func (e *UntrustedSignerError) Error() string {
	return fmt.Sprintf("artifact signed by untrusted key %s", e.Fingerprint)
}

// TrustedKeys is a set of signer public keys a caller accepts, keyed by
// their marshaled wire form.
type TrustedKeys map[string]ssh.PublicKey

// NewTrustedKeys builds a TrustedKeys set from a list of authorized-keys
// formatted lines.
func NewTrustedKeys(authorizedKeyLines ...string) (TrustedKeys, error) {
	keys := make(TrustedKeys, len(authorizedKeyLines))
	for _, line := range authorizedKeyLines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("sign: parse trusted key: %w", err)
		}
		keys[string(pub.Marshal())] = pub
	}
	return keys, nil
}

// Verify checks that encoded is a well-formed "sshsig-v1" signature over
// payload, signed by a key present in trusted. trusted may be nil to skip
// the trust check entirely (verify the signature shape only).
func Verify(payload []byte, encoded string, trusted TrustedKeys) error {
	parts := strings.SplitN(strings.TrimSpace(encoded), ":", 4)
	if len(parts) != 4 || parts[0] != signaturePrefix {
		return &InvalidSignatureError{Reason: fmt.Sprintf("unrecognized signature format %q", encoded)}
	}
	format, pubB64, sigB64 := parts[1], parts[2], parts[3]

	pubBytes, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return &InvalidSignatureError{Reason: fmt.Sprintf("decode public key: %v", err)}
	}
	pub, err := ssh.ParsePublicKey(pubBytes)
	if err != nil {
		return &InvalidSignatureError{Reason: fmt.Sprintf("parse public key: %v", err)}
	}

	if trusted != nil {
		if _, ok := trusted[string(pub.Marshal())]; !ok {
			return &UntrustedSignerError{Fingerprint: ssh.FingerprintSHA256(pub)}
		}
	}

	sigBytes, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return &InvalidSignatureError{Reason: fmt.Sprintf("decode signature: %v", err)}
	}
	sig := &ssh.Signature{Format: format, Blob: sigBytes}

	if err := pub.Verify(payload, sig); err != nil {
		return &InvalidSignatureError{Reason: fmt.Sprintf("signature does not match payload: %v", err)}
	}
	return nil
}
