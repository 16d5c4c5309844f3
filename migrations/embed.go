// Package migrations embeds the SQL schema applied by the migrate command
// and the integration harness.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// FS holds every migration file.
//
//go:embed *.sql
var FS embed.FS

// Files returns migration names in apply order.
func Files() ([]string, error) {
	names, err := fs.Glob(FS, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// All returns every migration concatenated in apply order.
func All() (string, error) {
	names, err := Files()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, name := range names {
		data, err := FS.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("migrations: read %s: %w", name, err)
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String(), nil
}
