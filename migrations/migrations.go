// migrations встраивает SQL-миграции схемы (формат goose) в бинарник.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
