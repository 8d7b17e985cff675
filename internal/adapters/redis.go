package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mirror_go/internal/bootstrap"
)

var ErrRedisNotInitialized = errors.New("redis adapter is not initialized")

type AdapterRedis struct {
	client *redis.Client
	cfg    *bootstrap.Config
	log    *zap.SugaredLogger
}

func NewAdapterRedis(cfg *bootstrap.Config, log *zap.SugaredLogger) *AdapterRedis {
	return &AdapterRedis{
		cfg: cfg,
		log: log,
	}
}

// redisOptions accepts both a bare "host:port" and a redis:// URL.
func redisOptions(url string) (*redis.Options, error) {
	if strings.Contains(url, "://") {
		return redis.ParseURL(url)
	}
	return &redis.Options{
		Addr: url,
		DB:   0,
	}, nil
}

func (a *AdapterRedis) Init(ctx context.Context) error {
	opts, err := redisOptions(a.cfg.RedisUrl)
	if err != nil {
		return fmt.Errorf("redis url %q: %w", a.cfg.RedisUrl, err)
	}
	a.client = redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.client.Ping(ctxPing).Err(); err != nil {
		_ = a.client.Close()
		a.client = nil
		return fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	a.log.Infow("connected to redis", "addr", opts.Addr)
	return nil
}

// Publish sends payload to every subscriber of channel. Nothing is stored.
func (a *AdapterRedis) Publish(ctx context.Context, channel string, payload []byte) error {
	if a.client == nil {
		return ErrRedisNotInitialized
	}
	return a.client.Publish(ctx, channel, payload).Err()
}

func (a *AdapterRedis) Close(ctx context.Context) error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}
