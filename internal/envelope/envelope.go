// Package envelope applies the field codec to the designated fields of a
// record on its way in and out of storage. Each entity declares its encrypted
// field set once, at compile time, in a Schema; callers only ever see
// external identifiers and plaintext, never the opaque row key or hex
// ciphertexts.
package envelope

import (
	"time"

	"github.com/dimiplan/dimiplan-server/internal/crypto"
)

// Schema declares, for one entity type, which fields the codec covers and
// where the owner, timestamps and upgrade flag live. Accessors receive a
// record copy owned by the envelope and return pointers into it.
type Schema[T any] struct {
	// Owner locates the owner column field. Required.
	Owner func(*T) *string

	// Encrypted locates the encrypted string fields. Required.
	Encrypted func(*T) []*string

	// Stamps locates created_at/updated_at, filled on insert when zero.
	// Optional.
	Stamps func(*T) (created, updated *time.Time)

	// Upgrade locates the needs-upgrade flag set when a legacy plaintext
	// column is read back. Optional.
	Upgrade func(*T) *bool
}

// Envelope wraps and unwraps records of one entity type.
type Envelope[T any] struct {
	keys   *crypto.Keyring
	schema Schema[T]
	now    func() time.Time
}

// New builds an envelope over the keyring for one declared schema.
func New[T any](keys *crypto.Keyring, schema Schema[T]) *Envelope[T] {
	return &Envelope[T]{keys: keys, schema: schema, now: time.Now}
}

// WithClock replaces the envelope's time source and returns the envelope.
func (e *Envelope[T]) WithClock(now func() time.Time) *Envelope[T] {
	e.now = now
	return e
}

// Now returns the current time at second precision, the same clock used to
// fill zero timestamps on insert. Update paths stamp updated_at with it.
func (e *Envelope[T]) Now() time.Time { return e.now().Truncate(time.Second) }

// WrapForInsert returns a storable copy of rec: encrypted fields replaced by
// their ciphertext, the owner field replaced by the opaque hash, and zero
// timestamps filled with the current time at second precision.
func (e *Envelope[T]) WrapForInsert(externalID string, rec T) (T, error) {
	out := rec
	for _, f := range e.schema.Encrypted(&out) {
		ct, err := e.keys.EncryptField(externalID, *f)
		if err != nil {
			return out, err
		}
		*f = ct
	}
	*e.schema.Owner(&out) = e.keys.HashID(externalID)

	if e.schema.Stamps != nil {
		now := e.Now()
		created, updated := e.schema.Stamps(&out)
		if created != nil && created.IsZero() {
			*created = now
		}
		if updated != nil && updated.IsZero() {
			*updated = now
		}
	}
	return out, nil
}

// UnwrapForRead returns a caller-facing copy of row: encrypted fields
// replaced by their plaintext and the owner replaced by the external
// identifier. A column that fails the encrypted-shape check is a legacy
// plaintext value; it is passed through unchanged and the record's
// needs-upgrade flag is set so the caller may schedule a rewrite.
func (e *Envelope[T]) UnwrapForRead(externalID string, row T) (T, error) {
	out := row
	legacy := false
	for _, f := range e.schema.Encrypted(&out) {
		if !crypto.LooksEncrypted(*f) {
			legacy = true
			continue
		}
		plain, err := e.keys.DecryptField(externalID, *f)
		if err != nil {
			return out, err
		}
		*f = plain
	}
	*e.schema.Owner(&out) = externalID

	if legacy && e.schema.Upgrade != nil {
		if flag := e.schema.Upgrade(&out); flag != nil {
			*flag = true
		}
	}
	return out, nil
}

// EqualityTerm produces the ciphertext to compare against an encrypted
// column in a WHERE clause. Only fields in the deterministic set declared by
// a schema are searchable; the codec's fixed per-user IV is what makes this
// equality valid.
func (e *Envelope[T]) EqualityTerm(externalID, plaintext string) (string, error) {
	return e.keys.EncryptField(externalID, plaintext)
}

// OwnerHash exposes the opaque row key for repository WHERE clauses.
func (e *Envelope[T]) OwnerHash(externalID string) string {
	return e.keys.HashID(externalID)
}
