package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/IliaW/jamaah-scrape-worker/config"
	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	cfg    *config.CacheConfig
	log    *slog.Logger
}

func NewRedisStore(cfg *config.CacheConfig, log *slog.Logger) *RedisStore {
	log.Info("connecting to redis...")
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Error("connection to redis is failed.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("connected to redis!")

	return &RedisStore{client: rdb, cfg: cfg, log: log}
}

func (rs *RedisStore) Load(ctx context.Context, date string) (*model.DailySnapshot, error) {
	data, err := rs.client.Get(ctx, snapshotKey(rs.cfg.KeyPrefix, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s model.DailySnapshot
	if err = json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (rs *RedisStore) Save(ctx context.Context, s *model.DailySnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err = rs.client.Set(ctx, snapshotKey(rs.cfg.KeyPrefix, s.Date), data, rs.cfg.TtlForSnapshot).Err(); err != nil {
		return err
	}
	rs.log.Debug("snapshot saved to redis.", slog.String("date", s.Date))
	return nil
}

func (rs *RedisStore) Close() {
	rs.log.Info("closing redis connection.")
	if err := rs.client.Close(); err != nil {
		rs.log.Error("failed to close redis connection.", slog.String("err", err.Error()))
	}
}
