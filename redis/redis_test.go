package redis

import (
	"context"
	"testing"
	"time"

	"github.com/m-lab/tocket/tocket/model"
)

func clientSetup(t *testing.T) *Client {
	client := NewClient("localhost:6379")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping tests. Start Redis with: docker run -d -p 6379:6379 redis:latest")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func Test_SetAndGetTerminationFlag(t *testing.T) {
	redisClient := clientSetup(t)
	uuid := "test-uuid-001"
	for _, flag := range []int{0, 1} {
		err := redisClient.SetTerminationFlag(context.Background(), uuid, flag)
		if err != nil {
			t.Fatalf("Failed to set termination flag: %v", err)
		}
		f, err := redisClient.GetTerminationFlag(context.Background(), uuid)
		if err != nil {
			t.Fatalf("Failed to get termination flag: %v", err)
		}
		if f != flag {
			t.Fatalf("Termination flag set incorrectly: %v instead of %v", f, flag)
		}
	}

	// Cleanup
	_ = redisClient.SetTerminationFlag(context.Background(), uuid, 0)
}

func Test_GetTerminationFlagDefault(t *testing.T) {
	redisClient := clientSetup(t)
	f, err := redisClient.GetTerminationFlag(context.Background(), "test-uuid-never-set")
	if err != nil || f != 0 {
		t.Errorf("GetTerminationFlag() = %d, %v; want 0, nil", f, err)
	}
}

func Test_SetAndGetSnapshot(t *testing.T) {
	redisClient := clientSetup(t)
	uuid := "test-uuid-002"
	want := &model.Snapshot{UUID: uuid, TimestampMS: 1234, Cwnd: 10, RTT: 2000}
	if err := redisClient.SetSnapshot(context.Background(), uuid, want); err != nil {
		t.Fatalf("Failed to set snapshot: %v", err)
	}
	got, err := redisClient.GetSnapshot(context.Background(), uuid)
	if err != nil {
		t.Fatalf("Failed to get snapshot: %v", err)
	}
	if *got != *want {
		t.Errorf("GetSnapshot() = %+v, want %+v", got, want)
	}
}
