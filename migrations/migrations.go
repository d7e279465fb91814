// migrations содержит встраиваемые SQL-миграции, применяемые goose при старте.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
