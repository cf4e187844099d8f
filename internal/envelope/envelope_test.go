package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dimiplan/dimiplan-server/internal/config"
	"github.com/dimiplan/dimiplan-server/internal/crypto"
	"github.com/dimiplan/dimiplan-server/internal/model"
)

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

func TestWrapForInsert_User(t *testing.T) {
	keys := newTestKeyring(t)
	env := New(keys, Users).WithClock(func() time.Time {
		return time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	})
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)

	in := model.User{
		Owner:        "u1",
		Name:         "Kim",
		Email:        "kim@example.com",
		ProfileImage: "https://img.example.com/kim.png",
		Grade:        2,
		Class:        3,
	}
	row, err := env.WrapForInsert("u1", in)
	require.NoError(t, err)

	require.Equal(t, keys.HashID("u1"), row.Owner)
	for _, ct := range []string{row.Name, row.Email, row.ProfileImage} {
		require.True(t, crypto.LooksEncrypted(ct))
	}
	require.Equal(t, 2, row.Grade)
	require.Equal(t, fixed, row.CreatedAt)
	require.Equal(t, fixed, row.UpdatedAt)

	// Input record untouched.
	require.Equal(t, "Kim", in.Name)

	// Pre-set timestamps survive.
	in.CreatedAt = fixed.Add(-time.Hour)
	row, err = env.WrapForInsert("u1", in)
	require.NoError(t, err)
	require.Equal(t, fixed.Add(-time.Hour), row.CreatedAt)
}

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	keys := newTestKeyring(t)
	env := New(keys, Planners)

	in := model.Planner{Owner: "u1", ID: 4, Name: "Math", IsDaily: true}
	row, err := env.WrapForInsert("u1", in)
	require.NoError(t, err)
	require.NotEqual(t, "Math", row.Name)

	out, err := env.UnwrapForRead("u1", row)
	require.NoError(t, err)
	require.Equal(t, "u1", out.Owner)
	require.Equal(t, "Math", out.Name)
	require.True(t, out.IsDaily)
	require.False(t, out.NeedsUpgrade)
}

func TestUnwrapForRead_LegacyPlaintextPassthrough(t *testing.T) {
	keys := newTestKeyring(t)
	env := New(keys, Folders)

	row := model.Folder{Owner: keys.HashID("u1"), ID: 1, Name: "수학 자료"}
	out, err := env.UnwrapForRead("u1", row)
	require.NoError(t, err)
	require.Equal(t, "수학 자료", out.Name)
	require.Equal(t, "u1", out.Owner)
	require.True(t, out.NeedsUpgrade)
}

func TestEqualityTerm_MatchesStoredCiphertext(t *testing.T) {
	keys := newTestKeyring(t)
	env := New(keys, Planners)

	row, err := env.WrapForInsert("u1", model.Planner{Owner: "u1", Name: "Math"})
	require.NoError(t, err)

	term, err := env.EqualityTerm("u1", "Math")
	require.NoError(t, err)
	require.Equal(t, row.Name, term)

	other, err := env.EqualityTerm("u2", "Math")
	require.NoError(t, err)
	require.NotEqual(t, term, other)
}

func TestNow_TruncatesInjectedClock(t *testing.T) {
	keys := newTestKeyring(t)
	fixed := time.Date(2024, 3, 1, 9, 30, 15, 700, time.Local)
	env := New(keys, Users).WithClock(func() time.Time { return fixed })
	require.Equal(t, fixed.Truncate(time.Second), env.Now())
}

func TestOwnerHash(t *testing.T) {
	keys := newTestKeyring(t)
	env := New(keys, Rooms)
	require.Equal(t, keys.HashID("u1"), env.OwnerHash("u1"))
}
