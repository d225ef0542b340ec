package cache

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("key not found in cache")
	ErrInvalidValue = errors.New("invalid value for cache")
	ErrClosed       = errors.New("cache is closed")
	ErrInvalidKey   = errors.New("invalid cache key")
)

type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Get(ctx context.Context, key string, value interface{}) error

	Delete(ctx context.Context, key string) error

	Clear(ctx context.Context) error

	Close() error
}

type Options struct {
	DefaultTTL time.Duration

	CleanupInterval time.Duration

	RedisURL string

	RedisPassword string

	RedisDB int
}

func DefaultOptions() Options {
	return Options{
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute * 5,
	}
}

// Encode turns a cacheable value into bytes. Values must be strings,
// byte slices or implement encoding.BinaryMarshaler.
func Encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case encoding.BinaryMarshaler:
		data, err := v.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshaling cache value: %w", err)
		}
		return data, nil
	default:
		return nil, ErrInvalidValue
	}
}

// Decode writes cached bytes into value, which must be a *string or
// implement encoding.BinaryUnmarshaler.
func Decode(data []byte, value interface{}) error {
	switch v := value.(type) {
	case *string:
		*v = string(data)
		return nil
	case encoding.BinaryUnmarshaler:
		return v.UnmarshalBinary(data)
	default:
		return ErrInvalidValue
	}
}
