// Package objects wraps the storage client with the fetch and move
// operations label processing needs.
package objects
