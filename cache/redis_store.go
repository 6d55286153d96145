package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Luismorlan/feedsync/model"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisStore persists cache entries as JSON under "scope__key" so a restarted
// client starts with warm (but stale) scopes.
type RedisStore struct {
	inner     *redis.Client
	keyParser RedisKeyParser
	ttl       time.Duration
}

const scanBatchSize = 100

var ctx = context.Background()

// GetRedisStore connects using REDIS_HOST, REDIS_PORT and REDIS_PASSWD. Every
// persisted entry expires after ttl, zero keeps entries forever.
func GetRedisStore(ttl time.Duration) (*RedisStore, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	_, err := redisClient.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStore{
		inner:     redisClient,
		keyParser: RedisKeyParser{delimiter: "__"},
		ttl:       ttl,
	}, nil
}

type RedisKeyParser struct {
	delimiter string
}

func (r RedisKeyParser) DecodeEntityKey(key string) (Scope, string, error) {
	splits := strings.Split(key, r.delimiter)
	if (len(splits)) != 2 {
		return "", "", fmt.Errorf("invalid key: %s", key)
	}
	return Scope(splits[0]), splits[1], nil
}

func (r RedisKeyParser) ValidateId(id string) bool {
	return !strings.Contains(id, r.delimiter)
}

func (r RedisKeyParser) EncodeEntityKey(scope Scope, key string) (string, error) {
	if !r.ValidateId(string(scope)) || !r.ValidateId(key) {
		return "", fmt.Errorf("invalid scope or key")
	}
	return fmt.Sprintf("%s%s%s", scope, r.delimiter, key), nil
}

func (r RedisKeyParser) scopePattern(scope Scope) string {
	return fmt.Sprintf("%s%s*", scope, r.delimiter)
}

func (r *RedisStore) Save(scope Scope, key string, e model.Entity) error {
	k, err := r.keyParser.EncodeEntityKey(scope, key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "cannot marshal entity "+key)
	}
	return r.inner.Set(ctx, k, data, r.ttl).Err()
}

func (r *RedisStore) Delete(scope Scope, key string) error {
	k, err := r.keyParser.EncodeEntityKey(scope, key)
	if err != nil {
		return err
	}
	return r.inner.Del(ctx, k).Err()
}

// DropScope deletes keys of the scope in batches to look easy on memory.
func (r *RedisStore) DropScope(scope Scope) error {
	iter := r.inner.Scan(ctx, 0, r.keyParser.scopePattern(scope), 0).Iterator()
	pipe := r.inner.Pipeline()
	count := 0

	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++

		if count >= scanBatchSize {
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			count = 0
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if count > 0 {
		_, err := pipe.Exec(ctx)
		return err
	}
	return nil
}

// Decoder turns a persisted JSON value back into an entity.
type Decoder func([]byte) (model.Entity, error)

func DecodePost(b []byte) (model.Entity, error) {
	var p model.Post
	err := json.Unmarshal(b, &p)
	return &p, err
}

func DecodeComment(b []byte) (model.Entity, error) {
	var c model.Comment
	err := json.Unmarshal(b, &c)
	return &c, err
}

func DecodeUser(b []byte) (model.Entity, error) {
	var u model.User
	err := json.Unmarshal(b, &u)
	return &u, err
}

// LoadScope reads every persisted entry of scope. Entries that fail to decode
// are skipped.
func (r *RedisStore) LoadScope(scope Scope, decode Decoder) ([]model.Entity, error) {
	keys := []string{}
	iter := r.inner.Scan(ctx, 0, r.keyParser.scopePattern(scope), 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []model.Entity{}, nil
	}

	res, err := r.inner.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	entities := []model.Entity{}
	for _, v := range res {
		// watchout, MGet yields nil for keys expired between scan and get
		str, ok := v.(string)
		if !ok {
			continue
		}
		e, err := decode([]byte(str))
		if err != nil {
			continue
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func (r *RedisStore) Close() error {
	return r.inner.Close()
}
