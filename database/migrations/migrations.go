// Package migrations holds the schema history. Each file registers itself
// from init(); cmd/opsipintar blank-imports the package so every migration
// is known before migrate runs.
package migrations
