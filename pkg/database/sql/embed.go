// Package sql embeds the DDL for the relational state store and the
// ClickHouse time-series store so deployments can apply schema at startup.
package sql

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed schema/*.sql
//go:embed clickhouse/*.sql
var Content embed.FS

// PostgresStatements returns the relational DDL files in apply order.
func PostgresStatements() ([]string, error) {
	return readDir("schema")
}

// ClickHouseStatements returns the time-series DDL files in apply order.
func ClickHouseStatements() ([]string, error) {
	return readDir("clickhouse")
}

func readDir(dir string) ([]string, error) {
	entries, err := fs.ReadDir(Content, dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	statements := make([]string, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(Content, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read schema file %s: %w", name, err)
		}
		statements = append(statements, string(data))
	}
	return statements, nil
}
