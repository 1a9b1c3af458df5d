package postgres

import (
	"qrshield/pkg/storage"
	"time"
)

// PgCacheEntry is a row of the cache_entries table.
type PgCacheEntry struct {
	Namespace  string    `db:"namespace"`
	Key        string    `db:"key"`
	Value      []byte    `db:"value"`
	CreatedAt  time.Time `db:"created_at"`
	AccessedAt time.Time `db:"accessed_at"`
}

// PgCacheMeta is a cache_entries row without its payload.
type PgCacheMeta struct {
	Key        string    `db:"key"`
	CreatedAt  time.Time `db:"created_at"`
	AccessedAt time.Time `db:"accessed_at"`
}

func (p *PgCacheEntry) ToDomain() storage.Entry {
	return storage.Entry{
		Value:      p.Value,
		CreatedAt:  p.CreatedAt.UTC(),
		AccessedAt: p.AccessedAt.UTC(),
	}
}

func (p *PgCacheEntry) FromDomain(namespace, key string, e storage.Entry) {
	*p = PgCacheEntry{
		Namespace:  namespace,
		Key:        key,
		Value:      e.Value,
		CreatedAt:  e.CreatedAt,
		AccessedAt: e.AccessedAt,
	}
}

func pgMetasToDomain(rows []PgCacheMeta) []storage.Meta {
	out := make([]storage.Meta, 0, len(rows))
	for _, r := range rows {
		out = append(out, storage.Meta{Key: r.Key, CreatedAt: r.CreatedAt.UTC(), AccessedAt: r.AccessedAt.UTC()})
	}

	return out
}
