package postgres

import (
	"context"
	"fmt"
	"qrshield/pkg/storage"

	"github.com/doug-martin/goqu/v9"
)

const (
	cacheTable = "cache_entries"
)

// Namespace returns a storage.Store restricted to rows of the given namespace.
func (p *PgSQL) Namespace(namespace string) storage.Store {
	return &namespaceStore{pg: p, namespace: namespace}
}

type namespaceStore struct {
	pg        *PgSQL
	namespace string
}

func (s *namespaceStore) Load(ctx context.Context, key string) (storage.Entry, bool, error) {
	var row PgCacheEntry
	found, err := s.pg.Builder.From(cacheTable).
		Where(
			goqu.I("namespace").Eq(s.namespace),
			goqu.I("key").Eq(key),
		).
		ScanStructContext(ctx, &row)
	if err != nil {
		return storage.Entry{}, false, fmt.Errorf("could not load cache entry from pg: %w", err)
	}
	if !found {
		return storage.Entry{}, false, nil
	}

	return row.ToDomain(), true, nil
}

func (s *namespaceStore) Save(ctx context.Context, key string, entry storage.Entry) error {
	var row PgCacheEntry
	row.FromDomain(s.namespace, key, entry)

	_, err := s.pg.Builder.Insert(cacheTable).
		Rows(row).
		OnConflict(goqu.DoUpdate("namespace, key", goqu.Record{
			"value":       goqu.L("EXCLUDED.value"),
			"created_at":  goqu.L("EXCLUDED.created_at"),
			"accessed_at": goqu.L("EXCLUDED.accessed_at"),
		})).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not save cache entry into pg: %w", err)
	}

	return nil
}

func (s *namespaceStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := s.pg.Builder.Delete(cacheTable).
		Where(
			goqu.I("namespace").Eq(s.namespace),
			goqu.I("key").In(keys),
		).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not delete cache entries from pg: %w", err)
	}

	return nil
}

func (s *namespaceStore) List(ctx context.Context) ([]storage.Meta, error) {
	var rows []PgCacheMeta
	if err := s.pg.Builder.From(cacheTable).
		Select("key", "created_at", "accessed_at").
		Where(goqu.I("namespace").Eq(s.namespace)).
		ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("could not list cache entries from pg: %w", err)
	}

	return pgMetasToDomain(rows), nil
}
