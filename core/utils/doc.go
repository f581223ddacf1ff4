// Package utils provides conversion helpers shared by the storage backends,
// mainly for decoding values read back from Redis hashes.
package utils
