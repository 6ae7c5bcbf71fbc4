package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/ipintel-client/pkg/client"
	"github.com/Sternrassler/ipintel-client/pkg/logging"
	"github.com/rs/zerolog"
)

// DefaultTTL is used when NewLookuper is given a non-positive ttl.
const DefaultTTL = time.Hour

// Lookuper serves IP reports from Redis and falls back to next on a miss.
// It is safe for concurrent use when next is.
type Lookuper struct {
	next    client.Lookuper
	manager *Manager
	ttl     time.Duration
	logger  zerolog.Logger
}

// NewLookuper wraps next with the report cache.
func NewLookuper(next client.Lookuper, manager *Manager, ttl time.Duration) *Lookuper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Lookuper{
		next:    next,
		manager: manager,
		ttl:     ttl,
		logger:  logging.NewLogger("cache"),
	}
}

// LookupIP implements client.Lookuper.
func (l *Lookuper) LookupIP(ctx context.Context, ip string) (client.Document, error) {
	key := CacheKey{Endpoint: client.EndpointIPReport, Target: ip}

	entry, err := l.manager.Get(ctx, key)
	switch {
	case err == nil:
		doc, derr := client.DecodeDocument(entry.Data)
		if derr == nil {
			l.logger.Debug().
				Str("target", ip).
				Dur("age", entry.Age()).
				Msg("Report served from cache")
			return doc, nil
		}
		CacheErrors.WithLabelValues("decode").Inc()
		l.logger.Warn().Err(derr).Str("target", ip).Msg("Discarding corrupt cache entry")
		_ = l.manager.Delete(ctx, key)
	case errors.Is(err, ErrCacheMiss):
	default:
		l.logger.Warn().Err(err).Str("target", ip).Msg("Cache unavailable, looking up directly")
	}

	doc, err := l.next.LookupIP(ctx, ip)
	if err != nil {
		return nil, err
	}

	data, err := doc.Marshal()
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		l.logger.Warn().Err(err).Str("target", ip).Msg("Failed to encode report for cache")
		return doc, nil
	}
	if err := l.manager.Set(ctx, key, NewEntry(data, l.ttl)); err != nil {
		l.logger.Warn().Err(err).Str("target", ip).Msg("Failed to store report in cache")
	}
	return doc, nil
}
