// Package cache provides an optional Redis-backed cache for Criminal IP reports.
//
// The API client itself never caches. Caching is added by wrapping any
// client.Lookuper:
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//	lookuper := cache.NewLookuper(apiClient, manager, time.Hour)
//
//	doc, err := lookuper.LookupIP(ctx, "8.8.8.8")
//
// Behavior:
//
//   - Only successful reports are stored. Failures always reach the API again.
//   - Entries expire after the configured TTL (DefaultTTL when zero).
//   - Redis errors degrade to a direct lookup and are logged at warn level.
//
// Keys have the form ipintel:report:<endpoint>:<target>, for example
//
//	ipintel:report:asset/ip/report:8.8.8.8
//
// # Metrics
//
//   - ipintel_cache_hits_total{layer="redis"} - Cache hits
//   - ipintel_cache_misses_total - Cache misses
//   - ipintel_cache_stored_bytes_total - Bytes written to Redis
//   - ipintel_cache_errors_total{operation} - Cache operation errors
package cache
