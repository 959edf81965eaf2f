package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	rdb   *redis.Client
	rdbMu sync.RWMutex
)

// GetRedisDB returns nil until ConnectRedisWithRetry succeeds. Every helper in
// this file treats a nil client as "no cache".
func GetRedisDB() *redis.Client {
	rdbMu.RLock()
	defer rdbMu.RUnlock()
	return rdb
}

// SetRedisDB replaces the shared client. Tests point it at a throwaway server.
func SetRedisDB(client *redis.Client) {
	rdbMu.Lock()
	rdb = client
	rdbMu.Unlock()
}

func GetRedisObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	client := GetRedisDB()
	if client == nil {
		return false, nil
	}
	val, err := client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func SetRedisObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	client := GetRedisDB()
	if client == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, objInByte, exp).Err()
}

// IncrementWindowCounter bumps key and starts its expiry on the first hit.
// It returns the count inside the current window.
func IncrementWindowCounter(ctx context.Context, client *redis.Client, key string, window time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// ConnectRedisWithRetry connects in the background when REDIS_ADDRESS is set.
// Call it from main() after the HTTP server is listening; the service runs
// without a cache until the connection is up.
func ConnectRedisWithRetry(ctx context.Context) {
	redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDRESS"))
	if redisAddr == "" {
		log.Printf("REDIS_ADDRESS not set; running without redis")
		return
	}

	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0, // use default DB
			PoolSize: 20,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			SetRedisDB(client)
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, redisAddr)
			return
		}
		_ = client.Close()

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, err, sleep)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// CloseRedis is best-effort.
func CloseRedis() {
	rdbMu.Lock()
	defer rdbMu.Unlock()
	if rdb != nil {
		_ = rdb.Close()
		rdb = nil
	}
}
