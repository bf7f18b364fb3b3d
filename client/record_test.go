package client

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStore_SaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewRecordStore(fs, "data/auth.json")
	require.NoError(t, fs.MkdirAll("data", 0o755))

	rec := AuthorizationRecord{RequestData: "rd-abc", VerificationToken: "tok-123"}
	require.NoError(t, store.Save(rec))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	raw, err := afero.ReadFile(fs, "data/auth.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"request_data\": \"rd-abc\",\n    \"verification_token\": \"tok-123\"\n}\n", string(raw))

	entries, err := afero.ReadDir(fs, "data")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestRecordStore_SaveOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewRecordStore(fs, "auth.json")

	require.NoError(t, store.Save(AuthorizationRecord{RequestData: "old", VerificationToken: "old"}))
	require.NoError(t, store.Save(AuthorizationRecord{RequestData: "new", VerificationToken: "new"}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", got.RequestData)
}

func TestRecordStore_SaveIncomplete(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewRecordStore(fs, "auth.json")

	err := store.Save(AuthorizationRecord{RequestData: "rd-abc"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistenceFailed))
	assert.True(t, errors.Is(err, ErrInvalidRecord))

	exists, err := afero.Exists(fs, "auth.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRecordStore_SaveReadOnly(t *testing.T) {
	store := NewRecordStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "auth.json")

	err := store.Save(AuthorizationRecord{RequestData: "rd", VerificationToken: "tok"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistenceFailed))
}

func TestRecordStore_LoadMissing(t *testing.T) {
	store := NewRecordStore(afero.NewMemMapFs(), "auth.json")

	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredentials))
	assert.Contains(t, Hint(err), "courtreserve-bot login")
}

func TestRecordStore_LoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "request_data=abc"},
		{"empty token", `{"request_data": "rd", "verification_token": ""}`},
		{"missing request data", `{"verification_token": "tok"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "auth.json", []byte(tt.content), 0o644))

			_, err := NewRecordStore(fs, "auth.json").Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRecord))
			assert.NotEmpty(t, Hint(err))
		})
	}
}

func TestRecordStore_Remove(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewRecordStore(fs, "auth.json")
	require.NoError(t, store.Save(AuthorizationRecord{RequestData: "rd", VerificationToken: "tok"}))

	removed, err := store.Remove()
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Remove()
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRecordStore_Age(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewRecordStore(fs, "auth.json")
	require.NoError(t, store.Save(AuthorizationRecord{RequestData: "rd", VerificationToken: "tok"}))

	written := time.Date(2024, 5, 4, 6, 0, 0, 0, time.UTC)
	require.NoError(t, fs.Chtimes("auth.json", written, written))

	age, err := store.Age(written.Add(90 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, age)
}
