package fixtures

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darioblanco/pregonero-go/internal/memstore"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestLoadFile_MissingFileIsNoOp(t *testing.T) {
	store := memstore.New()
	err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"), store, testLogger())
	require.NoError(t, err)
}

func TestLoadFile_LoadsEachAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"email": "a@example.com", "password": "p1", "imap_host": "imap.example.com"},
		{"email": "b@example.com", "password": "p2", "imap_host": "imap.example.com"}
	]`), 0o600))

	store := memstore.New()
	require.NoError(t, LoadFile(context.Background(), path, store, testLogger()))

	acc, err := store.LoadAccountByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "p1", acc.Password)

	acc, err = store.LoadAccountByEmail(context.Background(), "b@example.com")
	require.NoError(t, err)
	require.NotNil(t, acc)
}

func TestLoadFile_MalformedJSONFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	store := memstore.New()
	err := LoadFile(context.Background(), path, store, testLogger())
	assert.Error(t, err)
}
