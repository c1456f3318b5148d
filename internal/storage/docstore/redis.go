package docstore

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/config"
)

const idField = "_id"

// RedisStore implements Store with one hash per document, one set per
// collection and one pub/sub channel per collection.
type RedisStore struct {
	client *redis.Client
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(client), nil
}

// New wraps an existing client.
func New(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func docKey(path string) string         { return "doc:" + path }
func collectionKey(coll string) string { return "col:" + coll }
func changeChannel(coll string) string { return "chg:" + coll }

// Get reads the document at path.
func (s *RedisStore) Get(ctx context.Context, path string) (Document, bool, error) {
	fields, err := s.client.HGetAll(ctx, docKey(path)).Result()
	if err != nil {
		return Document{}, false, fmt.Errorf("get %s: %w", path, err)
	}
	if len(fields) == 0 {
		return Document{}, false, nil
	}
	_, id := Split(path)
	return toDocument(id, fields), true, nil
}

// Set replaces the document at path.
func (s *RedisStore) Set(ctx context.Context, path string, fields map[string]string) error {
	coll, id := Split(path)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(path))
		pipe.HSet(ctx, docKey(path), withID(id, fields))
		pipe.SAdd(ctx, collectionKey(coll), id)
		pipe.Publish(ctx, changeChannel(coll), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Merge writes the given fields into the document at path, creating it if needed.
func (s *RedisStore) Merge(ctx context.Context, path string, fields map[string]string) error {
	coll, id := Split(path)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, docKey(path), withID(id, fields))
		pipe.SAdd(ctx, collectionKey(coll), id)
		pipe.Publish(ctx, changeChannel(coll), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}

// Delete removes the document at path.
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	coll, id := Split(path)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(path))
		pipe.SRem(ctx, collectionKey(coll), id)
		pipe.Publish(ctx, changeChannel(coll), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// List returns the documents of collection.
func (s *RedisStore) List(ctx context.Context, collection string) ([]Document, error) {
	ids, err := s.client.SMembers(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, docKey(Join(collection, id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		// A member without a hash is left over from an interrupted delete.
		if len(fields) == 0 {
			continue
		}
		docs = append(docs, toDocument(ids[i], fields))
	}
	return docs, nil
}

// Subscribe watches collection until ctx is done.
func (s *RedisStore) Subscribe(ctx context.Context, collection string) (<-chan []Document, error) {
	pubsub := s.client.Subscribe(ctx, changeChannel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	out := make(chan []Document, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		push := func() {
			docs, err := s.List(ctx, collection)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[docstore] snapshot of %s failed: %v", collection, err)
				}
				return
			}
			deliverLatest(out, docs)
		}

		push()
		changes := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				push()
			}
		}
	}()

	return out, nil
}

// deliverLatest replaces an undelivered snapshot instead of blocking.
func deliverLatest(out chan []Document, docs []Document) {
	select {
	case out <- docs:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- docs
}

func withID(id string, fields map[string]string) map[string]any {
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	values[idField] = id
	return values
}

func toDocument(id string, fields map[string]string) Document {
	delete(fields, idField)
	return Document{ID: id, Fields: fields}
}
