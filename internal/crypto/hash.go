package crypto

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HashDigestLen is the length of an opaque owner hash in hex characters.
const HashDigestLen = 64

// HashID maps an external identifier to its opaque row key: the lowercase
// hex of SHA3-256 over externalID || UID_SALT. Deterministic; the same
// external id yields the same hash in every row, so equality lookups stay
// O(1). This is a row key against casual correlation in backups, not a
// password hash.
func (k *Keyring) HashID(externalID string) string {
	h := sha3.New256()
	h.Write([]byte(externalID))
	h.Write(k.uidSalt)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyID reports whether candidateHex is the owner hash of externalID,
// using a constant-time comparison. Length mismatches return false.
func (k *Keyring) VerifyID(externalID, candidateHex string) bool {
	want := k.HashID(externalID)
	if len(candidateHex) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidateHex), []byte(want)) == 1
}

// IsOwnerHash reports whether s has the shape of an opaque owner hash:
// exactly 64 lowercase hex characters. Used by the backfill engine to
// recognize already-migrated owner columns.
func IsOwnerHash(s string) bool {
	if len(s) != HashDigestLen {
		return false
	}
	return isLowerHex(s)
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return len(s) > 0
}
