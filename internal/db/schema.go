package db

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the embedded DDL.
func Schema() string { return schemaSQL }

// ApplySchema creates any missing tables and indexes.
func ApplySchema(ctx context.Context, q Querier) error {
	if q == nil {
		return ErrUnavailable
	}
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
