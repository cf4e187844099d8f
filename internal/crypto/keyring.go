// Package crypto implements the per-user deterministic envelope primitives:
// owner-id hashing, key derivation from the process master secrets, and the
// field codec used by the record envelope.
//
// The codec is deliberately deterministic: a fixed per-user IV makes
// ciphertext equality reveal plaintext equality within one user, which is
// what enables equality lookups on encrypted columns (planner and folder
// name uniqueness). The scheme is a confidentiality-at-rest envelope against
// database exfiltration alone, not a general-purpose encryption layer.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/dimiplan/dimiplan-server/internal/config"
)

var (
	// ErrEncrypt indicates a cryptographic primitive failure during field
	// encryption. Never retried.
	ErrEncrypt = errors.New("crypto: encryption failure")

	// ErrDecrypt indicates the stored value could not be decrypted: bad hex,
	// bad padding, wrong key, or non-UTF-8 plaintext.
	ErrDecrypt = errors.New("crypto: decryption failure")

	// ErrUnknownVersion indicates a ciphertext version prefix with no
	// configured master secret.
	ErrUnknownVersion = errors.New("crypto: unknown key version")
)

// KeyLen and IVLen are the AES-256-CBC parameter sizes produced by derivation.
const (
	KeyLen = 32
	IVLen  = 16
)

// UserKeys is the derived (key, iv) pair for one external identifier.
type UserKeys struct {
	Key [KeyLen]byte
	IV  [IVLen]byte
}

// memoLimit bounds the derived-key memo. Derivations are pure, so the memo
// is dropped wholesale when full rather than evicted piecemeal.
const memoLimit = 4096

type memoKey struct {
	version    int
	externalID string
}

// Keyring holds the process master secrets and answers all derivation,
// hashing and codec requests. Safe for concurrent use; secrets are never
// mutated after construction.
type Keyring struct {
	versions map[int]config.VersionedSecret
	current  int
	uidSalt  []byte

	mu   sync.Mutex
	memo map[memoKey]UserKeys
}

// New builds a keyring from loaded secrets. Version 0 must be present.
func New(s config.Secrets) (*Keyring, error) {
	if len(s.UIDSalt) == 0 {
		return nil, errors.New("crypto: empty UID salt")
	}
	versions := s.Versions
	if versions == nil {
		versions = map[int]config.VersionedSecret{
			0: {Key: s.MasterKey, IVSeed: s.MasterIVSeed},
		}
	}
	v0, ok := versions[0]
	if !ok || len(v0.Key) == 0 || len(v0.IVSeed) == 0 {
		return nil, errors.New("crypto: missing version-0 master secrets")
	}
	if _, ok := versions[s.CurrentVersion]; !ok {
		return nil, ErrUnknownVersion
	}
	return &Keyring{
		versions: versions,
		current:  s.CurrentVersion,
		uidSalt:  s.UIDSalt,
		memo:     make(map[memoKey]UserKeys),
	}, nil
}

// DeriveUserKeys returns the deterministic (key, iv) pair for an external
// identifier under the current key version:
//
//	key = HMAC-SHA256(MASTER_KEY, externalID)
//	iv  = HMAC-SHA256(MASTER_IV_SEED, externalID)[:16]
//
// Results are memoized per process; derived keys are never persisted.
func (k *Keyring) DeriveUserKeys(externalID string) UserKeys {
	keys, _ := k.deriveVersion(k.current, externalID)
	return keys
}

func (k *Keyring) deriveVersion(version int, externalID string) (UserKeys, error) {
	mk := memoKey{version: version, externalID: externalID}

	k.mu.Lock()
	if keys, ok := k.memo[mk]; ok {
		k.mu.Unlock()
		return keys, nil
	}
	k.mu.Unlock()

	sec, ok := k.versions[version]
	if !ok {
		return UserKeys{}, ErrUnknownVersion
	}

	var keys UserKeys
	copy(keys.Key[:], hmacSHA256(sec.Key, externalID))
	copy(keys.IV[:], hmacSHA256(sec.IVSeed, externalID)[:IVLen])

	k.mu.Lock()
	if len(k.memo) >= memoLimit {
		k.memo = make(map[memoKey]UserKeys)
	}
	k.memo[mk] = keys
	k.mu.Unlock()
	return keys, nil
}

func hmacSHA256(secret []byte, msg string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(msg))
	return h.Sum(nil)
}
