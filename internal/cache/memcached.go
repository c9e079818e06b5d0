package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/IliaW/jamaah-scrape-worker/config"
	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedStore keeps snapshots in memcached under "<prefix>:<date>". Entries expire after
// ttl_for_snapshot.
type MemcachedStore struct {
	client *memcache.Client
	cfg    *config.CacheConfig
	log    *slog.Logger
}

func NewMemcachedStore(cacheConfig *config.CacheConfig, log *slog.Logger) *MemcachedStore {
	log.Info("connecting to memcached...")
	ss := new(memcache.ServerList)
	servers := strings.Split(cacheConfig.Servers, ",")
	err := ss.SetServers(servers...)
	if err != nil {
		log.Error("failed to set memcached servers.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c := &MemcachedStore{
		client: memcache.NewFromSelector(ss),
		cfg:    cacheConfig,
		log:    log,
	}
	c.log.Info("pinging the memcached.")
	err = c.client.Ping()
	if err != nil {
		log.Error("connection to the memcached is failed.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c.log.Info("connected to memcached!")

	return c
}

func (mc *MemcachedStore) Load(_ context.Context, date string) (*model.DailySnapshot, error) {
	item, err := mc.client.Get(snapshotKey(mc.cfg.KeyPrefix, date))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s model.DailySnapshot
	if err = json.Unmarshal(item.Value, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (mc *MemcachedStore) Save(_ context.Context, s *model.DailySnapshot) error {
	byteValue, err := json.Marshal(s)
	if err != nil {
		return err
	}
	item := &memcache.Item{
		Key:        snapshotKey(mc.cfg.KeyPrefix, s.Date),
		Value:      byteValue,
		Expiration: int32(mc.cfg.TtlForSnapshot.Seconds()),
	}
	if err = mc.client.Set(item); err != nil {
		return err
	}
	mc.log.Debug("snapshot saved to memcached.", slog.String("date", s.Date))
	return nil
}

func (mc *MemcachedStore) Close() {
	mc.log.Info("closing memcached connection.")
	err := mc.client.Close()
	if err != nil {
		mc.log.Error("failed to close memcached connection.", slog.String("err", err.Error()))
	}
}

func snapshotKey(prefix, date string) string {
	if prefix == "" {
		return "snapshot:" + date
	}
	return prefix + ":snapshot:" + date
}
