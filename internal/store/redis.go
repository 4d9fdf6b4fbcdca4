// Package store implements the AccountStore and Queue contracts against a
// single shared Redis instance: accounts and cursors as keys, QueueMessage
// publishes as a pub/sub channel.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/darioblanco/pregonero-go/internal/account"
	"github.com/darioblanco/pregonero-go/internal/email"
	"github.com/darioblanco/pregonero-go/internal/queue"
)

const (
	accountKeyPrefix = "account:"
	seqKeyPrefix     = "seq:"
	scanCount        = 100
)

// RedisStore implements account.Store and queue.Queue on a pool of Redis
// connections, shared read-mostly by every ingestion loop.
type RedisStore struct {
	pool *redis.Pool
}

// NewRedisStore builds a connection pool to host:port. The pool is safe
// for concurrent use; no single connection is ever handed to more than
// one caller at a time.
func NewRedisStore(host string, port int) *RedisStore {
	addr := fmt.Sprintf("%s:%d", host, port)
	pool := &redis.Pool{
		MaxIdle:     8,
		MaxActive:   64,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr, redis.DialConnectTimeout(5*time.Second))
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	return &RedisStore{pool: pool}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.pool.Close()
}

func accountKey(email string) string { return accountKeyPrefix + email }
func seqKey(email string) string     { return seqKeyPrefix + email }

func (s *RedisStore) LoadAccountByEmail(ctx context.Context, emailAddr string) (*account.Account, error) {
	c := s.pool.Get()
	defer c.Close()

	data, err := redis.Bytes(c.Do("GET", accountKey(emailAddr)))
	if err != nil {
		if err == redis.ErrNil {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get account %s: %w", emailAddr, err)
	}

	var acc account.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("store: unmarshal account %s: %w", emailAddr, err)
	}
	return &acc, nil
}

func (s *RedisStore) StoreAccount(ctx context.Context, acc account.Account) (string, error) {
	c := s.pool.Get()
	defer c.Close()

	data, err := json.Marshal(acc)
	if err != nil {
		return "", fmt.Errorf("store: marshal account %s: %w", acc.Email, err)
	}

	prior, err := redis.String(c.Do("GETSET", accountKey(acc.Email), data))
	if err != nil {
		if err == redis.ErrNil {
			return "", nil
		}
		return "", fmt.Errorf("store: store account %s: %w", acc.Email, err)
	}
	return prior, nil
}

func (s *RedisStore) DestroyAccount(ctx context.Context, emailAddr string) error {
	c := s.pool.Get()
	defer c.Close()

	if _, err := c.Do("DEL", accountKey(emailAddr)); err != nil {
		return fmt.Errorf("store: destroy account %s: %w", emailAddr, err)
	}
	return nil
}

func (s *RedisStore) LoadLastSequence(ctx context.Context, emailAddr string) (uint32, error) {
	c := s.pool.Get()
	defer c.Close()

	v, err := redis.Uint64(c.Do("GET", seqKey(emailAddr)))
	if err != nil {
		if err == redis.ErrNil {
			return account.InitialHighWaterMark, nil
		}
		return 0, fmt.Errorf("store: get sequence %s: %w", emailAddr, err)
	}
	return uint32(v), nil
}

func (s *RedisStore) StoreLastSequence(ctx context.Context, emailAddr string, seq uint32) error {
	c := s.pool.Get()
	defer c.Close()

	if _, err := c.Do("SET", seqKey(emailAddr), strconv.FormatUint(uint64(seq), 10)); err != nil {
		return fmt.Errorf("store: store sequence %s: %w", emailAddr, err)
	}
	return nil
}

// LoadAccountsByHost scans for account:*@<hostGlob> keys (the literal "*"
// hostGlob enumerates everything), iterating the cursor until it wraps
// and deduplicating matched keys.
func (s *RedisStore) LoadAccountsByHost(ctx context.Context, hostGlob string) ([]account.Account, error) {
	c := s.pool.Get()
	defer c.Close()

	keys, err := s.scanKeys(c, hostGlob)
	if err != nil {
		return nil, err
	}

	accounts := make([]account.Account, 0, len(keys))
	for _, key := range keys {
		data, err := redis.Bytes(c.Do("GET", key))
		if err != nil {
			if err == redis.ErrNil {
				continue
			}
			return nil, fmt.Errorf("store: get %s: %w", key, err)
		}
		var acc account.Account
		if err := json.Unmarshal(data, &acc); err != nil {
			return nil, fmt.Errorf("store: unmarshal %s: %w", key, err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// ClearHostAccounts deletes every account matching host, symmetric with
// LoadAccountsByHost.
func (s *RedisStore) ClearHostAccounts(ctx context.Context, host string) error {
	c := s.pool.Get()
	defer c.Close()

	keys, err := s.scanKeys(c, host)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := c.Do("DEL", key); err != nil {
			return fmt.Errorf("store: delete %s: %w", key, err)
		}
	}
	return nil
}

func (s *RedisStore) scanKeys(c redis.Conn, hostGlob string) ([]string, error) {
	pattern := fmt.Sprintf("%s*@%s", accountKeyPrefix, hostGlob)
	seen := make(map[string]bool)
	var keys []string

	cursor := "0"
	for {
		reply, err := redis.Values(c.Do("SCAN", cursor, "MATCH", pattern, "COUNT", scanCount))
		if err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", pattern, err)
		}
		if len(reply) != 2 {
			return nil, fmt.Errorf("store: unexpected SCAN reply shape for %s", pattern)
		}

		cursor, err = redis.String(reply[0], nil)
		if err != nil {
			return nil, fmt.Errorf("store: scan cursor: %w", err)
		}
		matched, err := redis.Strings(reply[1], nil)
		if err != nil {
			return nil, fmt.Errorf("store: scan keys: %w", err)
		}
		for _, key := range matched {
			if seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}

		if cursor == "0" {
			break
		}
	}
	return keys, nil
}

// Publish implements queue.Queue by publishing the JSON-encoded message
// on the shared emails pub/sub channel.
func (s *RedisStore) Publish(ctx context.Context, msg email.QueueMessage) error {
	c := s.pool.Get()
	defer c.Close()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("store: marshal queue message: %w", err)
	}
	if _, err := c.Do("PUBLISH", queue.Topic, data); err != nil {
		return fmt.Errorf("store: publish: %w", err)
	}
	return nil
}

var _ account.Store = (*RedisStore)(nil)
var _ queue.Queue = (*RedisStore)(nil)
