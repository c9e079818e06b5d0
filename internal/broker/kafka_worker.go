package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/config"
	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SnapshotProducer sends every new snapshot to a kafka topic, keyed by date.
type SnapshotProducer struct {
	snapshotChan chan *model.DailySnapshot
	cfg          *config.ProducerConfig
	log          *slog.Logger
	wg           *sync.WaitGroup
	mu           sync.Mutex
	closed       bool
}

func NewSnapshotProducer(cfg *config.ProducerConfig, log *slog.Logger, wg *sync.WaitGroup) *SnapshotProducer {
	return &SnapshotProducer{
		snapshotChan: make(chan *model.DailySnapshot, 16),
		cfg:          cfg,
		log:          log,
		wg:           wg,
	}
}

// Publish queues s without blocking. When the queue is full the snapshot is dropped: it is
// still served by the cache.
func (p *SnapshotProducer) Publish(s *model.DailySnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.log.Warn("producer is closed. Snapshot not published.", slog.String("date", s.Date))
		return
	}
	select {
	case p.snapshotChan <- s:
	default:
		p.log.Warn("producer queue is full. Snapshot not published.", slog.String("date", s.Date))
	}
}

// Close stops accepting snapshots. Run sends what is queued and returns.
func (p *SnapshotProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.snapshotChan)
	}
}

func (p *SnapshotProducer) Run() {
	defer p.wg.Done()
	p.log.Info("starting kafka producer...", slog.String("topic", p.cfg.WriteTopicName))

	w := kafka.Writer{
		Addr:         kafka.TCP(strings.Split(p.cfg.Addr, ",")...),
		Topic:        p.cfg.WriteTopicName,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  p.cfg.MaxAttempts,
		BatchSize:    1,                // the parameter is controlled by 'batchTicker' variable
		BatchTimeout: time.Millisecond, // the parameter is controlled by 'batch' variable
		ReadTimeout:  p.cfg.ReadTimeout,
		WriteTimeout: p.cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(p.cfg.RequiredAsks),
		Async:        p.cfg.Async,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				p.log.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			}
		},
		Compression: kafka.Compression(new(lz4.Codec).Code()),
	}
	defer func() {
		err := w.Close()
		if err != nil {
			p.log.Error("failed to close kafka writer.", slog.String("err", err.Error()))
		}
	}()

	batchTicker := time.NewTicker(p.cfg.BatchTimeout)
	defer batchTicker.Stop()
	batch := make([]kafka.Message, 0, p.cfg.BatchSize)
	writeMessage := func(batch []kafka.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
		defer cancel()
		err := w.WriteMessages(ctx, batch...)
		if err != nil {
			p.log.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			return
		}
		p.log.Debug("successfully sent messages to kafka.", slog.Int("batch length", len(batch)))
	}

	for snapshot := range p.snapshotChan {
		msg, err := snapshotMessage(snapshot)
		if err != nil {
			p.log.Error("marshaling error.", slog.String("err", err.Error()), slog.String("date", snapshot.Date))
			continue
		}
		batch = append(batch, msg)
		select {
		case <-batchTicker.C:
			writeMessage(batch)
			batch = batch[:0]
		default:
			if len(batch) >= p.cfg.BatchSize {
				writeMessage(batch)
				batch = batch[:0]
			}
		}
	}
	// Some messages may remain in the batch after snapshotChan is closed
	if len(batch) > 0 {
		p.log.Debug("messages in batch.", slog.Int("count", len(batch)))
		writeMessage(batch)
	}
	p.log.Info("stopping kafka writer.")
}

func snapshotMessage(s *model.DailySnapshot) (kafka.Message, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(s.Date),
		Value: body,
		Time:  s.UpdatedAt,
	}, nil
}

type Refresher interface {
	RefreshDate(ctx context.Context, date time.Time) (*model.DailySnapshot, error)
	Today() time.Time
}

// RefreshConsumer reads refresh requests from kafka and regenerates the requested snapshot.
type RefreshConsumer struct {
	refresher Refresher
	cfg       *config.ConsumerConfig
	loc       *time.Location
	log       *slog.Logger
	wg        *sync.WaitGroup
}

func NewRefreshConsumer(refresher Refresher, cfg *config.ConsumerConfig, loc *time.Location, log *slog.Logger,
	wg *sync.WaitGroup) *RefreshConsumer {
	return &RefreshConsumer{
		refresher: refresher,
		cfg:       cfg,
		loc:       loc,
		log:       log,
		wg:        wg,
	}
}

// Run reads until ctx is done, then closes the reader.
func (c *RefreshConsumer) Run(ctx context.Context) {
	c.log.Info("starting kafka consumer.", slog.String("topic", c.cfg.ReadTopicName))
	defer c.wg.Done()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:          strings.Split(c.cfg.Brokers, ","),
		Topic:            c.cfg.ReadTopicName,
		GroupID:          c.cfg.GroupID,
		MaxWait:          c.cfg.MaxWait,
		ReadBatchTimeout: c.cfg.ReadBatchTimeout,
	})

	for {
		select {
		case <-ctx.Done():
			c.log.Info("stopping kafka reader.")
			err := r.Close()
			if err != nil {
				c.log.Error("failed to close kafka reader.", slog.String("err", err.Error()))
			}
			return
		default:
			m, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					c.log.Error("failed to read message from kafka.", slog.String("err", err.Error()))
				}
				continue
			}
			c.log.Debug("successfully read messages from kafka.")

			date, err := c.taskDate(m.Value)
			if err != nil {
				c.log.Error("invalid refresh request.", slog.String("err", err.Error()))
				continue
			}
			if _, err = c.refresher.RefreshDate(ctx, date); err != nil {
				c.log.Error("refresh failed.", slog.String("date", date.Format(model.DateLayout)),
					slog.String("err", err.Error()))
			}
		}
	}
}

// taskDate decodes a RefreshTask. An empty body or an empty date means today.
func (c *RefreshConsumer) taskDate(value []byte) (time.Time, error) {
	var task model.RefreshTask
	if len(value) > 0 {
		if err := json.Unmarshal(value, &task); err != nil {
			return time.Time{}, fmt.Errorf("unmarshal refresh task: %w", err)
		}
	}
	if task.Date == "" {
		return c.refresher.Today(), nil
	}
	date, err := time.ParseInLocation(model.DateLayout, task.Date, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("refresh task date: %w", err)
	}
	return date, nil
}
