// Package fixtures loads the development-only accounts.json seed file.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/darioblanco/pregonero-go/internal/account"
)

// FileName is the fixture file's fixed name, looked up in the process
// working directory.
const FileName = "accounts.json"

// Load reads FileName and upserts every entry into store. A missing file
// is a no-op, logged at info level, not an error — fixtures are optional
// even in dev.
func Load(ctx context.Context, store account.Store, logger *logrus.Logger) error {
	return LoadFile(ctx, FileName, store, logger)
}

// LoadFile is Load with an explicit path, for tests.
func LoadFile(ctx context.Context, path string, store account.Store, logger *logrus.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithField("path", path).Info("fixtures: no fixture file found, skipping")
			return nil
		}
		return fmt.Errorf("fixtures: read %s: %w", path, err)
	}

	var accounts []account.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return fmt.Errorf("fixtures: parse %s: %w", path, err)
	}

	for _, acc := range accounts {
		if _, err := store.StoreAccount(ctx, acc); err != nil {
			return fmt.Errorf("fixtures: store account %s: %w", acc.Email, err)
		}
	}
	logger.WithField("count", len(accounts)).Info("fixtures: loaded accounts")
	return nil
}
