package usage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// RedisStore is a Store on top of go-redis.
//
// Each row is a hash under "<prefix>:usage:{<team>:<metric>}:<startMs>". A
// sorted set "<prefix>:usage:{<team>:<metric>}:periods" indexes the rows by
// start, with members "<startMs>:<endMs>". The hash tag keeps a counter's
// keys in one cluster slot. Period bounds are stored at millisecond
// precision.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a Redis-backed Store. Keys are namespaced by prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if client == nil {
		panic("usage: redis client is required")
	}
	if prefix == "" {
		prefix = "meterkit"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// addScript increments the usage field and floors it at zero.
// KEYS[1] row; ARGV[1] delta; ARGV[2] now (ms).
var addScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
local v = redis.call('HINCRBY', KEYS[1], 'usage', ARGV[1])
if v < 0 then
	redis.call('HSET', KEYS[1], 'usage', 0)
	v = 0
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return v
`)

// createScript inserts a row unless one with the same start exists.
// Returns 1 when created, 0 when the row already existed, -1 on overlap.
// KEYS[1] index; KEYS[2] row.
// ARGV: start, end, id, usage, limit, now (times in ms).
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
local s = tonumber(ARGV[1])
local candidates = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[2])
for _, m in ipairs(candidates) do
	local sep = string.find(m, ':', 1, true)
	if tonumber(string.sub(m, sep + 1)) > s then
		return -1
	end
end
redis.call('HSET', KEYS[2],
	'id', ARGV[3], 'usage', ARGV[4], 'limit', ARGV[5],
	'start', ARGV[1], 'end', ARGV[2],
	'created_at', ARGV[6], 'updated_at', ARGV[6])
redis.call('ZADD', KEYS[1], s, ARGV[1] .. ':' .. ARGV[2])
return 1
`)

func (s *RedisStore) Find(ctx context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time) (*Tracking, error) {
	key, err := s.locate(ctx, teamID, metric, at)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, key, teamID, metric)
}

func (s *RedisStore) Add(ctx context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time, delta int64) (int64, error) {
	// rows are immutable in their bounds and never removed, so the row
	// located here still contains at when the script runs
	key, err := s.locate(ctx, teamID, metric, at)
	if err != nil {
		return 0, err
	}

	v, err := addScript.Run(ctx, s.client, []string{key}, delta, s.now().UnixMilli()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrTrackingNotFound
		}
		return 0, classifyRedis(fmt.Errorf("increment tracking: %w", err), true)
	}
	return v, nil
}

func (s *RedisStore) Create(ctx context.Context, t Tracking) (*Tracking, bool, error) {
	startMs, endMs := t.PeriodStart.UnixMilli(), t.PeriodEnd.UnixMilli()
	if startMs >= endMs {
		return nil, false, ErrInvalidPeriod
	}
	rowKey := s.rowKey(t.TeamID, t.Metric, startMs)

	res, err := createScript.Run(ctx, s.client,
		[]string{s.indexKey(t.TeamID, t.Metric), rowKey},
		startMs, endMs, uuid.NewString(), t.Usage, t.Limit, s.now().UnixMilli(),
	).Int64()
	if err != nil {
		return nil, false, classifyRedis(fmt.Errorf("create tracking: %w", err), false)
	}
	if res < 0 {
		return nil, false, ErrPeriodOverlap
	}

	row, err := s.load(ctx, rowKey, t.TeamID, t.Metric)
	if err != nil {
		return nil, false, err
	}
	return row, res == 1, nil
}

// locate returns the key of the row containing at.
func (s *RedisStore) locate(ctx context.Context, teamID uuid.UUID, metric plans.Metric, at time.Time) (string, error) {
	atMs := at.UnixMilli()
	members, err := s.client.ZRevRangeByScore(ctx, s.indexKey(teamID, metric), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(atMs, 10),
		Count: 1,
	}).Result()
	if err != nil {
		return "", classifyRedis(fmt.Errorf("locate tracking: %w", err), false)
	}
	if len(members) == 0 {
		return "", ErrTrackingNotFound
	}

	startMs, endMs, err := parsePeriodMember(members[0])
	if err != nil {
		return "", err
	}
	if atMs >= endMs {
		return "", ErrTrackingNotFound
	}
	return s.rowKey(teamID, metric, startMs), nil
}

func (s *RedisStore) load(ctx context.Context, key string, teamID uuid.UUID, metric plans.Metric) (*Tracking, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, classifyRedis(fmt.Errorf("load tracking: %w", err), false)
	}
	if len(fields) == 0 {
		return nil, ErrTrackingNotFound
	}

	t := &Tracking{TeamID: teamID, Metric: metric}
	if t.ID, err = uuid.Parse(fields["id"]); err != nil {
		return nil, fmt.Errorf("tracking %s: invalid id: %w", key, err)
	}
	ints := map[string]*int64{"usage": &t.Usage, "limit": &t.Limit}
	for name, dst := range ints {
		if *dst, err = strconv.ParseInt(fields[name], 10, 64); err != nil {
			return nil, fmt.Errorf("tracking %s: invalid %s: %w", key, name, err)
		}
	}
	times := map[string]*time.Time{
		"start":      &t.PeriodStart,
		"end":        &t.PeriodEnd,
		"created_at": &t.CreatedAt,
		"updated_at": &t.UpdatedAt,
	}
	for name, dst := range times {
		ms, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tracking %s: invalid %s: %w", key, name, err)
		}
		*dst = time.UnixMilli(ms).UTC()
	}
	return t, nil
}

func (s *RedisStore) indexKey(teamID uuid.UUID, metric plans.Metric) string {
	return fmt.Sprintf("%s:usage:{%s:%s}:periods", s.prefix, teamID, metric)
}

func (s *RedisStore) rowKey(teamID uuid.UUID, metric plans.Metric, startMs int64) string {
	return fmt.Sprintf("%s:usage:{%s:%s}:%d", s.prefix, teamID, metric, startMs)
}

func parsePeriodMember(m string) (start, end int64, err error) {
	rawStart, rawEnd, ok := strings.Cut(m, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed period member %q", m)
	}
	if start, err = strconv.ParseInt(rawStart, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed period member %q: %w", m, err)
	}
	if end, err = strconv.ParseInt(rawEnd, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed period member %q: %w", m, err)
	}
	return start, end, nil
}

// classifyRedis marks connectivity failures as ErrStorageUnavailable, and
// write failures whose outcome is unknown as ErrWriteUncertain.
func classifyRedis(err error, write bool) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &netErr):
		if write {
			return errors.Join(ErrStorageUnavailable, ErrWriteUncertain, err)
		}
		return errors.Join(ErrStorageUnavailable, err)
	case errors.Is(err, redis.ErrClosed), isRedisBusy(err):
		// rejected before the command ran
		return errors.Join(ErrStorageUnavailable, err)
	}
	return err
}

func isRedisBusy(err error) bool {
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return false
	}
	msg := rerr.Error()
	for _, prefix := range []string{"LOADING", "READONLY", "MASTERDOWN", "CLUSTERDOWN", "TRYAGAIN"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
