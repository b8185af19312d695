// Package redis publishes live session state to Redis and reads back
// operator decisions about it.
//
// Two tables are used, both keyed by session UUID:
//
//	table_1:<uuid>  latest snapshot of the session, as JSON
//	table_2:<uuid>  termination flag, 1 asks the session to stop early
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client connected to the given address.
func NewClient(addr string) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, // e.g., "localhost:6379"
	})
	return &Client{rdb: rdb}
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
