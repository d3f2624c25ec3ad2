package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Code purposes.
const (
	PurposeConfirm = "confirm"
	PurposeReset   = "reset"
)

// MaxCodeAttempts is the number of wrong guesses after which a stored code
// is discarded and a new one must be requested.
const MaxCodeAttempts = 5

// CodeStore keeps single-use verification codes. A code is removed when it
// is consumed or after MaxCodeAttempts wrong guesses.
type CodeStore interface {
	Save(ctx context.Context, purpose, email, code string, ttl time.Duration) error
	Consume(ctx context.Context, purpose, email, code string) error
}

// consumeScript deletes the code on a match. A miss increments the attempts
// counter, which shares the code's TTL, and drops both keys once the counter
// reaches ARGV[2].
var consumeScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
  return 0
end
if v == ARGV[1] then
  redis.call("DEL", KEYS[1], KEYS[2])
  return 1
end
local n = redis.call("INCR", KEYS[2])
if n == 1 then
  local ttl = redis.call("PTTL", KEYS[1])
  if ttl > 0 then
    redis.call("PEXPIRE", KEYS[2], ttl)
  end
end
if n >= tonumber(ARGV[2]) then
  redis.call("DEL", KEYS[1], KEYS[2])
end
return 0
`)

// RedisCodeStore stores codes as expiring Redis keys.
type RedisCodeStore struct {
	client *redis.Client
}

// NewRedisCodeStore builds a Redis-backed code store.
func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func codeKey(purpose, email string) string {
	return "code:" + purpose + ":" + NormalizeEmail(email)
}

func attemptsKey(purpose, email string) string {
	return codeKey(purpose, email) + ":attempts"
}

// Save replaces any previous code for the same purpose and email and resets
// its attempt counter.
func (s *RedisCodeStore) Save(ctx context.Context, purpose, email, code string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, codeKey(purpose, email), code, ttl)
		pipe.Del(ctx, attemptsKey(purpose, email))
		return nil
	})
	return err
}

// Consume deletes the code when it matches and counts a failed attempt
// otherwise.
func (s *RedisCodeStore) Consume(ctx context.Context, purpose, email, code string) error {
	keys := []string{codeKey(purpose, email), attemptsKey(purpose, email)}
	ok, err := consumeScript.Run(ctx, s.client, keys, code, MaxCodeAttempts).Int()
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if ok != 1 {
		return ErrInvalidCode
	}
	return nil
}

type memoryCode struct {
	code     string
	expires  time.Time
	attempts int
}

// MemoryCodeStore is the in-process CodeStore.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
	now   func() time.Time
}

// NewMemoryCodeStore builds an empty in-memory code store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[string]memoryCode), now: time.Now}
}

func (s *MemoryCodeStore) Save(_ context.Context, purpose, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[codeKey(purpose, email)] = memoryCode{code: code, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Consume(_ context.Context, purpose, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := codeKey(purpose, email)
	stored, ok := s.codes[key]
	if !ok {
		return ErrInvalidCode
	}
	if s.now().After(stored.expires) {
		delete(s.codes, key)
		return ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(stored.code), []byte(code)) != 1 {
		stored.attempts++
		if stored.attempts >= MaxCodeAttempts {
			delete(s.codes, key)
		} else {
			s.codes[key] = stored
		}
		return ErrInvalidCode
	}
	delete(s.codes, key)
	return nil
}

// Peek returns the stored code. Intended for tests and the dev CLI.
func (s *MemoryCodeStore) Peek(purpose, email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[codeKey(purpose, email)]
	return stored.code, ok
}

// NewCode returns a random six digit code.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
