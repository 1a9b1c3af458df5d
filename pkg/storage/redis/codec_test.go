package redis

import (
	"qrshield/pkg/storage"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEntryCodec(t *testing.T) {
	created := time.Unix(1700000000, 123).UTC()
	in := storage.Entry{Value: []byte(`{"chain":["https://a.example/"]}`), CreatedAt: created, AccessedAt: created.Add(time.Minute)}

	out, err := decodeEntry(encodeEntry(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodeEntry_Corrupt(t *testing.T) {
	for _, raw := range []string{``, `[]`, `{"v":1}`, `{"v":"aGk="}`, `{"c":"x"}`} {
		_, err := decodeEntry([]byte(raw))
		require.ErrorIs(t, err, storage.ErrCorruptEntry, raw)
	}

	e, err := decodeEntry([]byte(`{"v":"aGk=","c":1,"a":2,"extra":{"nested":true}}`))
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), e.Value)
}
