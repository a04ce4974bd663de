package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ApplySchema executes DDL files against a connection. Files may hold
// several semicolon-terminated statements; each is executed separately
// because the drivers reject multi-statement prepared queries.
func ApplySchema(ctx context.Context, db *sql.DB, files []string) error {
	for _, file := range files {
		for _, stmt := range strings.Split(file, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema statement: %w", err)
			}
		}
	}
	return nil
}
