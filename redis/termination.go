package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	table2Prefix = "table_2:"
)

// SetTerminationFlag sets 0 or 1 for a UUID.
func (c *Client) SetTerminationFlag(ctx context.Context, uuid string, flag int) error {
	return c.rdb.Set(ctx, table2Prefix+uuid, flag, entryTTL).Err()
}

// GetTerminationFlag returns 0 or 1, defaults to 0 if not found.
func (c *Client) GetTerminationFlag(ctx context.Context, uuid string) (int, error) {
	val, err := c.rdb.Get(ctx, table2Prefix+uuid).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}
