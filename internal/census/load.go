package census

import (
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/lowmason/naics-editor/internal/db"
	"github.com/lowmason/naics-editor/internal/errors"
	"github.com/lowmason/naics-editor/internal/naics"
)

// Load replaces the dataset with the given records in one transaction
// and records the load as an import batch.
func Load(database *sql.DB, records []naics.Record, source string, logger *zap.Logger) (string, error) {
	tx, err := database.Begin()
	if err != nil {
		return "", errors.NewStorage(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := db.DeleteAllTx(tx); err != nil {
		return "", err
	}

	now := time.Now().Unix()
	for i := range records {
		r := &records[i]
		if r.CreatedAt == 0 {
			r.CreatedAt = now
		}
		if r.UpdatedAt == 0 {
			r.UpdatedAt = now
		}
		if err := db.InsertTx(tx, r); err != nil {
			return "", err
		}
	}

	entropy := ulid.Monotonic(rand.Reader, 0)
	batch := &db.ImportBatch{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String(),
		Path:      source,
		Format:    "census",
		Imported:  len(records),
		CreatedAt: now,
	}
	if err := db.InsertBatchTx(tx, batch); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", errors.NewStorage(err)
	}

	logger.Info("loaded census dataset",
		zap.Int("records", len(records)),
		zap.String("batch_id", batch.ID),
	)
	return batch.ID, nil
}
