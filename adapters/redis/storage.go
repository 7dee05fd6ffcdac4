package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"partyboard/core"
	"partyboard/engine"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"PARTYBOARD_REDIS_ADDR"`
	Password     string        `json:"password" env:"PARTYBOARD_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"PARTYBOARD_REDIS_DB"`
	KeyPrefix    string        `json:"key_prefix" env:"PARTYBOARD_REDIS_KEY_PREFIX"`
	PoolSize     int           `json:"pool_size" env:"PARTYBOARD_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	TopCacheTTL  time.Duration `json:"top_cache_ttl" env:"PARTYBOARD_REDIS_TOP_CACHE_TTL"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DB:           0,
		KeyPrefix:    "partyboard",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		TopCacheTTL:  30 * time.Second,
	}
}

// Store implements engine.Storage on Redis.
// Data structure:
// - {prefix}:scores -> sorted set pseudo -> best score
// - {prefix}:player:{pseudo} -> hash {score, updated (unix nanos)}
// - {prefix}:top:{limit} -> JSON snapshot of ListTop, dropped on every write
// - {prefix}:topkeys -> set of cached snapshot keys
// - {prefix}:gen -> write counter; a snapshot is only cached if it is unchanged
type Store struct {
	client   *redis.Client
	prefix   string
	cacheTTL time.Duration
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewWithClient(client)
	if config.KeyPrefix != "" {
		s.prefix = config.KeyPrefix
	}
	s.cacheTTL = config.TopCacheTTL
	return s, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, prefix: "partyboard"}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) scoresKey() string { return s.prefix + ":scores" }

func (s *Store) playerKey(p core.Pseudo) string {
	return fmt.Sprintf("%s:player:%s", s.prefix, p)
}

func (s *Store) topKey(limit int) string { return fmt.Sprintf("%s:top:%d", s.prefix, limit) }

func (s *Store) topKeysKey() string { return s.prefix + ":topkeys" }

func (s *Store) genKey() string { return s.prefix + ":gen" }

// upsertScript ratchets the best score atomically.
// Returns {1, 0} created, {2, previous} updated, {3, stored} rejected.
var upsertScript = redis.NewScript(`
	local zkey = KEYS[1]
	local hkey = KEYS[2]
	local cachekeys = KEYS[3]
	local gen = KEYS[4]
	local score = tonumber(ARGV[1])
	local current = redis.call('HGET', hkey, 'score')

	local function write()
		redis.call('HSET', hkey, 'score', ARGV[1], 'updated', ARGV[2])
		redis.call('ZADD', zkey, score, ARGV[3])
		redis.call('INCR', gen)
		local cached = redis.call('SMEMBERS', cachekeys)
		for _, k in ipairs(cached) do
			redis.call('DEL', k)
		end
		redis.call('DEL', cachekeys)
	end

	if not current then
		write()
		return {1, 0}
	end
	current = tonumber(current)
	if score > current then
		write()
		return {2, current}
	end
	return {3, current}
`)

func (s *Store) UpsertBest(ctx context.Context, pseudo core.Pseudo, score int64) (core.UpsertResult, error) {
	keys := []string{s.scoresKey(), s.playerKey(pseudo), s.topKeysKey(), s.genKey()}
	now := time.Now().UTC().UnixNano()
	out, err := upsertScript.Run(ctx, s.client, keys, score, now, string(pseudo)).Int64Slice()
	if err != nil {
		return core.UpsertResult{}, core.WrapStorage("upsert", err)
	}
	if len(out) != 2 {
		return core.UpsertResult{}, core.WrapStorage("upsert", errors.New("unexpected result from Redis script"))
	}
	switch out[0] {
	case 1:
		return core.Created(score), nil
	case 2:
		return core.Updated(score, out[1]), nil
	default:
		return core.Rejected(score, out[1]), nil
	}
}

// ListTop reads every member tied with the last returned score so the date
// tie-break is applied before trimming.
func (s *Store) ListTop(ctx context.Context, limit int) ([]core.PlayerScore, error) {
	if cached, err := s.getCachedTop(ctx, limit); err == nil {
		return cached, nil
	}
	var gen string
	if s.cacheTTL > 0 {
		g, err := s.client.Get(ctx, s.genKey()).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, core.WrapStorage("list", err)
		}
		gen = g
	}

	zs, err := s.client.ZRevRangeWithScores(ctx, s.scoresKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, core.WrapStorage("list", err)
	}
	if len(zs) == limit && limit > 0 {
		cutoff := strconv.FormatInt(int64(zs[len(zs)-1].Score), 10)
		zs, err = s.client.ZRevRangeByScoreWithScores(ctx, s.scoresKey(), &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
		if err != nil {
			return nil, core.WrapStorage("list", err)
		}
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(zs))
	for i, z := range zs {
		cmds[i] = pipe.HGet(ctx, s.playerKey(core.Pseudo(memberString(z.Member))), "updated")
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, core.WrapStorage("list", err)
		}
	}

	out := make([]core.PlayerScore, 0, len(zs))
	for i, z := range zs {
		e := core.PlayerScore{Pseudo: core.Pseudo(memberString(z.Member)), BestScore: int64(z.Score)}
		if ns, err := cmds[i].Int64(); err == nil {
			e.LastUpdated = time.Unix(0, ns).UTC()
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return core.Less(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}

	// best-effort cache; keep it synchronous for determinism
	if s.cacheTTL > 0 {
		s.updateCachedTop(ctx, limit, gen, out)
	}
	return out, nil
}

func (s *Store) GetRank(ctx context.Context, pseudo core.Pseudo) (core.RankInfo, error) {
	score, err := s.client.HGet(ctx, s.playerKey(pseudo), "score").Int64()
	if errors.Is(err, redis.Nil) {
		return core.RankInfo{}, core.ErrNotFound
	}
	if err != nil {
		return core.RankInfo{}, core.WrapStorage("rank", err)
	}
	above, err := s.client.ZCount(ctx, s.scoresKey(), "("+strconv.FormatInt(score, 10), "+inf").Result()
	if err != nil {
		return core.RankInfo{}, core.WrapStorage("rank", err)
	}
	return core.RankInfo{Rank: above + 1, Pseudo: pseudo, Score: score}, nil
}

func (s *Store) getCachedTop(ctx context.Context, limit int) ([]core.PlayerScore, error) {
	if s.cacheTTL <= 0 {
		return nil, redis.Nil
	}
	data, err := s.client.Get(ctx, s.topKey(limit)).Bytes()
	if err != nil {
		return nil, err
	}
	var out []core.PlayerScore
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// cacheTopScript stores a snapshot only if no write happened since it was read.
var cacheTopScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1]) or ''
	if current ~= ARGV[1] then
		return 0
	end
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
	redis.call('SADD', KEYS[3], KEYS[2])
	return 1
`)

// updateCachedTop caches entries read at write generation gen.
func (s *Store) updateCachedTop(ctx context.Context, limit int, gen string, entries []core.PlayerScore) {
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	keys := []string{s.genKey(), s.topKey(limit), s.topKeysKey()}
	_ = cacheTopScript.Run(ctx, s.client, keys, gen, data, s.cacheTTL.Milliseconds()).Err()
}

func memberString(m any) string {
	switch v := m.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

var _ engine.Storage = (*Store)(nil)
