package queue

import (
	"context"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/satyamark/backend/pkg/json"
	"github.com/satyamark/backend/pkg/redis"
)

// Entry is one raw stream entry, used by the transfer job.
type Entry struct {
	ID     string
	Values map[string]interface{}
}

// Broker is the stream surface a router needs for one drain cycle. A fresh
// broker is dialed per cycle and closed at the end; connections are never
// pooled across cycles.
type Broker interface {
	// UsedMemoryMB reports the broker's approximate memory utilization.
	UsedMemoryMB(ctx context.Context) (float64, error)
	// Append serializes the job and appends it to the stream.
	Append(ctx context.Context, stream string, job Job) error
	// AppendValues appends raw entry values to the stream.
	AppendValues(ctx context.Context, stream string, values map[string]interface{}) error
	// Range reads all entries currently in the stream.
	Range(ctx context.Context, stream string) ([]Entry, error)
	// Delete removes entries by id.
	Delete(ctx context.Context, stream string, ids ...string) error
	Close() error
}

// Dialer opens a Broker for the given URL. Swapped for a fake in tests.
type Dialer func(ctx context.Context, url string) (Broker, error)

// RedisDialer returns a Dialer backed by go-redis.
func RedisDialer(log *zap.Logger) Dialer {
	return func(ctx context.Context, url string) (Broker, error) {
		client, err := redis.Dial(ctx, url, log)
		if err != nil {
			return nil, err
		}
		return &redisBroker{client: client}, nil
	}
}

type redisBroker struct {
	client *redis.Client
}

// UsedMemoryMB parses used_memory out of INFO memory. A missing field reads
// as zero, which routes to the primary; the original backend behaves the same.
func (b *redisBroker) UsedMemoryMB(ctx context.Context) (float64, error) {
	info, err := b.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:"); ok {
			bytes, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, err
			}
			return float64(bytes) / (1024 * 1024), nil
		}
	}
	return 0, nil
}

func (b *redisBroker) Append(ctx context.Context, stream string, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return b.AppendValues(ctx, stream, map[string]interface{}{"data": string(payload)})
}

func (b *redisBroker) AppendValues(ctx context.Context, stream string, values map[string]interface{}) error {
	return b.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Err()
}

func (b *redisBroker) Range(ctx context.Context, stream string) ([]Entry, error) {
	msgs, err := b.client.XRange(ctx, stream, "-", "+").Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, Entry{ID: m.ID, Values: m.Values})
	}
	return entries, nil
}

func (b *redisBroker) Delete(ctx context.Context, stream string, ids ...string) error {
	return b.client.XDel(ctx, stream, ids...).Err()
}

func (b *redisBroker) Close() error {
	return b.client.Close()
}
