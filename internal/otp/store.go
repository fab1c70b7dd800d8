package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// expiredGrace is how long an expired code is kept so it is reported as
// expired rather than missing.
const expiredGrace = time.Minute

// MemoryStore is used when no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	records map[string]Record
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{clock: clock, records: make(map[string]Record)}
}

func (m *MemoryStore) Put(_ context.Context, email string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Drop codes that were never verified.
	cutoff := m.clock.Now().Add(-expiredGrace)
	for k, r := range m.records {
		if r.ExpiresAt.Before(cutoff) {
			delete(m.records, k)
		}
	}
	m.records[email] = rec
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryStore) Get(_ context.Context, email string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[email]
	return rec, ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, email)
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, email string, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[email]
	if !ok || cur.Code != rec.Code || !cur.ExpiresAt.Equal(rec.ExpiresAt) {
		return false, nil
	}
	delete(m.records, email)
	return true, nil
}

// RedisStore keeps codes under otp:<email>. Keys outlive the code by a grace
// period so an expired code is reported as expired rather than missing.
type RedisStore struct {
	client *redis.Client
	grace  time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, grace: expiredGrace}
}

// consumeScript deletes the key only while it still holds the record the
// caller verified.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func otpKey(email string) string {
	return fmt.Sprintf("otp:%s", email)
}

func (r *RedisStore) Put(ctx context.Context, email string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling otp record: %w", err)
	}
	ttl := time.Until(rec.ExpiresAt) + r.grace
	if ttl <= 0 {
		ttl = r.grace
	}
	return r.client.Set(ctx, otpKey(email), data, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, email string) (Record, bool, error) {
	data, err := r.client.Get(ctx, otpKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("reading otp: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decoding otp record: %w", err)
	}
	return rec, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, email string) error {
	return r.client.Del(ctx, otpKey(email)).Err()
}

func (r *RedisStore) Consume(ctx context.Context, email string, rec Record) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshaling otp record: %w", err)
	}
	n, err := consumeScript.Run(ctx, r.client, []string{otpKey(email)}, string(data)).Int()
	if err != nil {
		return false, fmt.Errorf("consuming otp: %w", err)
	}
	return n == 1, nil
}
