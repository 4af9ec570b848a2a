package store_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Aiyaret-Sandhu/cid-ctf/internal/database"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/migrations"
	"github.com/Aiyaret-Sandhu/cid-ctf/internal/store"
)

func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         "localhost:1",
		DialTimeout:  10 * time.Millisecond,
		ReadTimeout:  10 * time.Millisecond,
		WriteTimeout: 10 * time.Millisecond,
		MaxRetries:   -1,
	})
}

func TestRedisNotifierUnreachable(t *testing.T) {
	rdb := deadRedis()
	defer rdb.Close()
	n := store.NewRedisNotifier(rdb, "ctf:test", slog.New(slog.DiscardHandler))

	if err := n.Publish(context.Background(), store.Snapshot{Collection: store.Teams, ID: "t1"}); err == nil {
		t.Error("Publish: expected error from unreachable redis")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := n.Run(ctx); err == nil {
		t.Error("Run: expected error from unreachable redis")
	}
}

func TestWritesSucceedWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	rdb := deadRedis()
	defer rdb.Close()
	s := store.NewDocStore(db, store.NewRedisNotifier(rdb, "ctf:test", nil), nil)

	id, err := s.Create(ctx, store.Teams, "", teamDoc{Name: "alpha"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var got teamDoc
	if err := s.Get(ctx, store.Teams, id, &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "alpha" {
		t.Errorf("Name = %q, want alpha", got.Name)
	}
}
