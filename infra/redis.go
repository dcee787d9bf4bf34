package infra

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autonmap/scan-orchestrator/config"
)

type RedisClient struct {
	Client *redis.Client
}

func InitRedisClient(cfg *config.EnvConfig) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisHost + ":" + cfg.Redis.RedisPort,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}

	log.Println("Connected to Redis:", cfg.Redis.RedisPort+" on "+cfg.Redis.RedisHost)

	return &RedisClient{Client: client}
}

// AcquireScanLock takes the per-scan execution lock. It returns false when
// another worker already holds the scan, which happens on duplicate
// delivery from the broker. The TTL covers the scan timeout so a crashed
// worker cannot pin a scan forever.
func (r *RedisClient) AcquireScanLock(ctx context.Context, scanID string, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, "scan:lock:"+scanID, 1, ttl).Result()
}

func (r *RedisClient) ReleaseScanLock(ctx context.Context, scanID string) error {
	return r.Client.Del(ctx, "scan:lock:"+scanID).Err()
}
