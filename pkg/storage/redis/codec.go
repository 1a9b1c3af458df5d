package redis

import (
	"fmt"
	"qrshield/pkg/storage"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// encodeEntry writes {"v":<base64>,"c":<unix nanos>,"a":<unix nanos>}.
func encodeEntry(e storage.Entry) []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("v")
	enc.Base64(e.Value)
	enc.FieldStart("c")
	enc.Int64(e.CreatedAt.UnixNano())
	enc.FieldStart("a")
	enc.Int64(e.AccessedAt.UnixNano())
	enc.ObjEnd()

	return enc.Bytes()
}

func decodeEntry(b []byte) (storage.Entry, error) {
	var (
		e       storage.Entry
		hasTime bool
	)

	err := jx.DecodeBytes(b).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "v":
			v, err := d.Base64()
			if err != nil {
				return errors.Wrap(err, "value")
			}
			e.Value = v
		case "c":
			n, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "created")
			}
			e.CreatedAt = time.Unix(0, n).UTC()
			hasTime = true
		case "a":
			n, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "accessed")
			}
			e.AccessedAt = time.Unix(0, n).UTC()
		default:
			return d.Skip()
		}

		return nil
	})
	if err != nil {
		return storage.Entry{}, fmt.Errorf("%w: %w", storage.ErrCorruptEntry, err)
	}
	if !hasTime {
		return storage.Entry{}, errors.Wrap(storage.ErrCorruptEntry, "missing created timestamp")
	}

	return e, nil
}
