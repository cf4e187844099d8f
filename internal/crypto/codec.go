package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// minCiphertextHex is the hex length of a single AES block, the smallest
// output EncryptField can produce.
const minCiphertextHex = 2 * aes.BlockSize

// EncryptField encrypts a single field value for the given external
// identifier using AES-256-CBC with the derived (key, iv) and PKCS#7
// padding. The output is lowercase hex; no authentication tag and no
// embedded IV (the IV is derived). Ciphertexts written under key version
// 0 are bare hex; under a rotated version n > 0 they carry a "vn:" prefix
// so decryption can select the matching derivation.
func (k *Keyring) EncryptField(externalID, value string) (string, error) {
	keys := k.DeriveUserKeys(externalID)

	block, err := aes.NewCipher(keys.Key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	padded := pkcs7Pad([]byte(value), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, keys.IV[:]).CryptBlocks(out, padded)

	enc := hex.EncodeToString(out)
	if k.current > 0 {
		enc = "v" + strconv.Itoa(k.current) + ":" + enc
	}
	return enc, nil
}

// EncryptJSON serializes a structured value to its canonical JSON text and
// encrypts it like any other field.
func (k *Keyring) EncryptJSON(externalID string, value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	return k.EncryptField(externalID, string(raw))
}

// DecryptField reverses EncryptField. The key version is taken from the
// optional "vn:" prefix; absent prefix means version 0, which keeps rows
// written before rotation support readable.
func (k *Keyring) DecryptField(externalID, stored string) (string, error) {
	version, hexPart := splitVersion(stored)

	keys, err := k.deriveVersion(version, externalID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not block-aligned", ErrDecrypt)
	}

	block, err := aes.NewCipher(keys.Key[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, keys.IV[:]).CryptBlocks(plain, raw)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecrypt)
	}
	return string(plain), nil
}

// DecryptJSON decrypts a field and parses the plaintext as JSON into dst.
func (k *Keyring) DecryptJSON(externalID, stored string, dst any) error {
	plain, err := k.DecryptField(externalID, stored)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plain), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return nil
}

// LooksEncrypted reports whether s has the shape of a codec output: an
// optional "vn:" version prefix followed by an even number (>= 32) of
// lowercase hex characters. It is a best-effort classifier for lazy
// upgrade of legacy plaintext rows; writes always encrypt regardless.
func LooksEncrypted(s string) bool {
	_, hexPart := splitVersion(s)
	if len(hexPart) < minCiphertextHex || len(hexPart)%2 != 0 {
		return false
	}
	return isLowerHex(hexPart)
}

// splitVersion parses an optional leading "vn:" version tag. Anything that
// does not parse as a tag is treated as version-0 ciphertext in full.
func splitVersion(s string) (version int, rest string) {
	if len(s) < 3 || s[0] != 'v' {
		return 0, s
	}
	colon := strings.IndexByte(s, ':')
	if colon < 2 {
		return 0, s
	}
	n, err := strconv.Atoi(s[1:colon])
	if err != nil || n <= 0 {
		return 0, s
	}
	return n, s[colon+1:]
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(b))
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return b[:len(b)-n], nil
}
