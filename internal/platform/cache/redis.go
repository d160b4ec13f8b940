package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

type Options struct {
	Addr     string
	Password string
	DB       int
}

// ConnectRedis creates the shared client and checks it with PING.
func ConnectRedis(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	RDB = client
	slog.Info("connected to Redis", "addr", opts.Addr)
	return client, nil
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		RDB = nil
		slog.Info("redis connection closed")
	}
}
