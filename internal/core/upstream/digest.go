package upstream

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gowebpki/jcs"
)

// payloadDigest returns "sha256:<hex>" over the RFC 8785 canonical form of
// payload, or "" when the payload cannot be canonicalized.
func payloadDigest(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	canonical, err := jcs.Transform(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:])
}
