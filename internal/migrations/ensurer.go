package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// SchemaVerifier checks that the items table exists.
type SchemaVerifier interface {
	ValidateSchema(ctx context.Context) error
}

// Ensurer creates the items table before a pipeline run.
type Ensurer struct {
	db          *sql.DB
	autoMigrate bool
	verifier    SchemaVerifier
}

// NewEnsurer returns an Ensurer. With autoMigrate false it never touches the
// migration machinery and only verifies the table through verifier.
func NewEnsurer(db *sql.DB, autoMigrate bool, verifier SchemaVerifier) *Ensurer {
	return &Ensurer{db: db, autoMigrate: autoMigrate, verifier: verifier}
}

func (e *Ensurer) EnsureSchema(ctx context.Context) error {
	if e.autoMigrate {
		return Run(e.db)
	}

	if e.verifier == nil {
		return errors.New("schema validation failed - auto_migrate is disabled and no schema verifier is configured")
	}
	slog.Info("[Migrations] Auto-migration disabled, verifying items table")
	if err := e.verifier.ValidateSchema(ctx); err != nil {
		return fmt.Errorf("schema validation failed - enable database.auto_migrate or run migrations: %w", err)
	}
	return nil
}
