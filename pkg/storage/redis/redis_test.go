package redis_test

import (
	"context"
	"fmt"
	"qrshield/pkg/storage"
	qredis "qrshield/pkg/storage/redis"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%d", host, port.Int())
}

func TestStore_CRUD(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	client, err := qredis.Open(ctx, qredis.Options{Addr: addr, DialTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	expansions := qredis.New(client, "expansions")
	ages := qredis.New(client, "domain_age")
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, ok, err := expansions.Load(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, expansions.Save(ctx, "k1", storage.Entry{Value: []byte("one"), CreatedAt: now, AccessedAt: now}))
	require.NoError(t, expansions.Save(ctx, "k2", storage.Entry{Value: []byte("two"), CreatedAt: now, AccessedAt: now}))
	require.NoError(t, ages.Save(ctx, "k1", storage.Entry{Value: []byte("42"), CreatedAt: now, AccessedAt: now}))

	got, ok, err := expansions.Load(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("one"), got.Value)
	require.True(t, now.Equal(got.CreatedAt))

	metas, err := expansions.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2, "namespaces are isolated")

	require.NoError(t, expansions.Delete(ctx, "k1", "missing"))
	require.NoError(t, expansions.Delete(ctx))
	_, ok, err = expansions.Load(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = ages.Load(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOpen_Unavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := qredis.Open(ctx, qredis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.ErrorIs(t, err, storage.ErrUnavailable)
}
