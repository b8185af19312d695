package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-lab/tocket/tocket/model"
)

const (
	table1Prefix = "table_1:"

	// entryTTL bounds how long the tables outlive their session.
	entryTTL = time.Hour
)

// SetSnapshot stores |s| as the latest snapshot of session |uuid|.
func (c *Client) SetSnapshot(ctx context.Context, uuid string, s *model.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, table1Prefix+uuid, data, entryTTL).Err()
}

// GetSnapshot returns the latest snapshot of session |uuid|.
func (c *Client) GetSnapshot(ctx context.Context, uuid string) (*model.Snapshot, error) {
	data, err := c.rdb.Get(ctx, table1Prefix+uuid).Bytes()
	if err != nil {
		return nil, err
	}
	var s model.Snapshot
	err = json.Unmarshal(data, &s)
	return &s, err
}
