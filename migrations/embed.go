// Package migrations embeds the SQL schema files. The central schema backs
// the shared store; the tenant schema is applied to each tenant's store when
// it is first created.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed central/*.sql tenant/*.sql
var FS embed.FS

// Central returns the central schema files in apply order.
func Central() ([]string, error) { return files("central") }

// Tenant returns the per-tenant schema files in apply order.
func Tenant() ([]string, error) { return files("tenant") }

func files(dir string) ([]string, error) {
	entries, err := fs.ReadDir(FS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, dir+"/"+e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Apply executes every schema file in the given set against db, in order.
func Apply(ctx context.Context, db *sql.DB, names []string) error {
	for _, name := range names {
		content, err := fs.ReadFile(FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
