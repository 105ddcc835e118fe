// Package redis implements store.Store on Redis. Each job is a Hash, a
// Sorted Set scored by an INCR sequence keeps insertion order, and Lua
// scripts make insert and status transitions atomic.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
