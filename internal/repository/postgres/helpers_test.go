package postgres

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/dimiplan/dimiplan-server/internal/config"
	"github.com/dimiplan/dimiplan-server/internal/crypto"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func newTestKeyring(t *testing.T) *crypto.Keyring {
	t.Helper()
	k, err := crypto.New(config.Secrets{
		MasterKey:    []byte("k"),
		MasterIVSeed: []byte("i"),
		UIDSalt:      []byte("s"),
	})
	require.NoError(t, err)
	return k
}

func mustEncrypt(t *testing.T, k *crypto.Keyring, externalID, value string) string {
	t.Helper()
	ct, err := k.EncryptField(externalID, value)
	require.NoError(t, err)
	return ct
}
