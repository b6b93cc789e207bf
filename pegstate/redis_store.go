package pegstate

import (
	"context"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"
)

const redisKeyPrefix = "sbtc:"

// RedisStore keeps documents as plain redis strings.
type RedisStore struct {
	pool *redis.Pool
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		pool: &redis.Pool{
			MaxIdle:     5,
			IdleTimeout: 5 * time.Minute,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr,
					redis.DialConnectTimeout(5*time.Second),
					redis.DialReadTimeout(5*time.Second),
					redis.DialWriteTimeout(5*time.Second),
				)
			},
		},
	}
}

func (st *RedisStore) Close() error {
	return st.pool.Close()
}

func (st *RedisStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := st.pool.GetContext(ctx)
	if err != nil {
		return nil, false, err
	}
	defer conn.Close()

	doc, err := redis.Bytes(conn.Do("GET", redisKeyPrefix+key))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (st *RedisStore) Save(ctx context.Context, key string, doc []byte) error {
	conn, err := st.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SET", redisKeyPrefix+key, doc)
	return err
}
