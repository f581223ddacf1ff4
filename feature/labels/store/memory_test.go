package store

import "testing"

func TestMemory(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		return NewMemory()
	})
}
