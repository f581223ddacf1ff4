// Package database opens the relational state database through GORM.
//
// Connect supports MySQL for deployments and SQLite for local runs and tests.
// MySQL connections are opened with clientFoundRows so conditional updates can
// tell "no row matched" apart from "row matched but unchanged".
//
// The inspector helpers (GetTableColumns, MissingColumns) are used after
// migrations to verify the state tables carry every column the store writes.
//
//	db, err := database.Connect(cfg.Database)
//	missing, err := database.MissingColumns(db, "labels", []string{"object_key", "state"})
package database
