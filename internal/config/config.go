// Package config resolves process configuration from the environment once at startup.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Secrets are the process-wide master secrets the crypto core derives from.
// Values are opaque byte strings; only presence is validated.
type Secrets struct {
	MasterKey    []byte // per-user data-key derivation secret
	MasterIVSeed []byte // per-user IV derivation secret
	UIDSalt      []byte // external-id hashing salt

	// Versioned master secrets for rotation, keyed by version number.
	// Version 0 is always MasterKey/MasterIVSeed. Populated from
	// MASTER_KEY_V<n>/MASTER_IV_SEED_V<n> pairs.
	Versions map[int]VersionedSecret

	// CurrentVersion selects the derivation used for new ciphertexts.
	// Defaults to 0 (bare-hex ciphertexts, no version prefix).
	CurrentVersion int
}

// VersionedSecret is one rotation generation of the master secrets.
type VersionedSecret struct {
	Key    []byte
	IVSeed []byte
}

// DB is the connection configuration for the storage collaborator.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// Config is everything the process needs, loaded once and never mutated.
type Config struct {
	Secrets       Secrets
	DB            DB
	SessionSecret []byte // consumed by the session collaborator, not the crypto core
}

// maxVersionScan bounds the MASTER_KEY_V<n> probe; rotations are rare and
// versions are assigned consecutively.
const maxVersionScan = 64

// Load reads and validates the environment. A missing or empty required
// variable is a fatal configuration error; callers are expected to exit.
func Load() (*Config, error) {
	masterKey, err := requireEnv("MASTER_KEY")
	if err != nil {
		return nil, err
	}
	ivSeed, err := requireEnv("MASTER_IV_SEED")
	if err != nil {
		return nil, err
	}
	uidSalt, err := requireEnv("UID_SALT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Secrets: Secrets{
			MasterKey:    masterKey,
			MasterIVSeed: ivSeed,
			UIDSalt:      uidSalt,
			Versions: map[int]VersionedSecret{
				0: {Key: masterKey, IVSeed: ivSeed},
			},
		},
		SessionSecret: []byte(os.Getenv("SESSION_SECRET")),
	}

	for v := 1; v <= maxVersionScan; v++ {
		key := os.Getenv(fmt.Sprintf("MASTER_KEY_V%d", v))
		seed := os.Getenv(fmt.Sprintf("MASTER_IV_SEED_V%d", v))
		if key == "" && seed == "" {
			continue
		}
		if key == "" || seed == "" {
			return nil, fmt.Errorf("config: MASTER_KEY_V%d and MASTER_IV_SEED_V%d must be set together", v, v)
		}
		cfg.Secrets.Versions[v] = VersionedSecret{Key: []byte(key), IVSeed: []byte(seed)}
	}

	if raw := os.Getenv("MASTER_KEY_VERSION"); raw != "" {
		cur, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: MASTER_KEY_VERSION: %w", err)
		}
		if _, ok := cfg.Secrets.Versions[cur]; !ok {
			return nil, fmt.Errorf("config: MASTER_KEY_VERSION=%d has no matching MASTER_KEY_V%d", cur, cur)
		}
		cfg.Secrets.CurrentVersion = cur
	}

	for _, v := range []struct {
		name string
		dst  *string
	}{
		{"DB_HOST", &cfg.DB.Host},
		{"DB_PORT", &cfg.DB.Port},
		{"DB_USER", &cfg.DB.User},
		{"DB_PASS", &cfg.DB.Pass},
		{"DB_NAME", &cfg.DB.Name},
	} {
		val, err := requireEnv(v.name)
		if err != nil {
			return nil, err
		}
		*v.dst = string(val)
	}

	return cfg, nil
}

// DSN builds the connection string for pgx.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Pass), d.Host, d.Port, d.Name)
}

func requireEnv(name string) ([]byte, error) {
	v := os.Getenv(name)
	if v == "" {
		return nil, fmt.Errorf("config: required environment variable %s is missing or empty", name)
	}
	return []byte(v), nil
}
