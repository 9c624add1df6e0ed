package data

import (
	"context"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
)

func TestNewResponseCache_NoopWithoutRedis(t *testing.T) {
	cache := NewResponseCache(&Data{}, log.DefaultLogger)

	assert.IsType(t, &noopResponseCache{}, cache)

	cache.Set(context.Background(), "k", []byte("v"), time.Minute)
	_, ok := cache.Get(context.Background(), "k")
	assert.False(t, ok, "noop cache never hits")
}
