package archive

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Client is the Redis-backed alert archive. The coordinator owns the
// authoritative in-memory store; the archive is a best-effort mirror for
// audit and cross-process visibility, so every write failure is recoverable.
type Client struct {
	rdb *redis.Client
}

func NewClient(addr string, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Connected to Redis: %s", addr)

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
