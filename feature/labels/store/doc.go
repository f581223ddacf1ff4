// Package store persists orders, labels and matches.
//
// Three backends implement Store: Gorm (MySQL or SQLite), Redis and Memory.
// All of them enforce the same rules: state changes are compare-and-set,
// only allowed transitions are accepted, and re-observing an entity never
// moves its state.
package store
