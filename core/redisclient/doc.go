// Package redisclient builds go-redis clients from configuration. The client
// backs the Redis state store and the Pub/Sub alert sink.
package redisclient
