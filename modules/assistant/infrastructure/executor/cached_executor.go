package executor

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/cache"
	"github.com/flotatrack/fleet-assistant/pkg/composables"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
	"github.com/flotatrack/fleet-assistant/pkg/metrics"
)

// flightTimeout bounds a shared query once it no longer follows the
// context of the caller that started it.
const flightTimeout = 30 * time.Second

// CachedExecutor serves repeated queries from a cache and collapses identical
// in-flight queries into a single call to the wrapped executor.
type CachedExecutor struct {
	next   Executor
	cache  cache.Cache
	group  singleflight.Group
	logger *logrus.Entry
}

func NewCachedExecutor(next Executor, c cache.Cache, logger *logrus.Entry) *CachedExecutor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &CachedExecutor{next: next, cache: c, logger: logger}
}

// CacheKey hashes the statement, its parameters and the tenant.
func CacheKey(sql string, params []any, companyID int64) (string, error) {
	payload, err := json.Marshal(struct {
		SQL     string `json:"sql"`
		Params  []any  `json:"params"`
		Company int64  `json:"company"`
	}{sql, params, companyID})
	if err != nil {
		return "", err
	}
	hash := md5.Sum(payload)
	return hex.EncodeToString(hash[:]), nil
}

func (e *CachedExecutor) Query(ctx context.Context, sql string, params []any) ([]Row, error) {
	var companyID int64
	if identity, err := composables.UseIdentity(ctx); err == nil {
		companyID = identity.CompanyID
	}
	key, err := CacheKey(sql, params, companyID)
	if err != nil {
		e.logger.WithError(err).Warn("result cache key failed, bypassing cache")
		return e.next.Query(ctx, sql, params)
	}

	if rows, ok := e.lookup(ctx, key); ok {
		return rows, nil
	}

	ch := e.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		rows, err := e.next.Query(flightCtx, sql, params)
		if err != nil {
			return nil, err
		}
		if encoded, err := json.Marshal(rows); err != nil {
			e.logger.WithError(err).Warn("result cache encode failed")
		} else if err := e.cache.Set(flightCtx, key, string(encoded)); err != nil {
			e.logger.WithError(err).Warn("result cache write failed")
		}
		return rows, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneRows(res.Val.([]Row)), nil
	}
}

func (e *CachedExecutor) lookup(ctx context.Context, key string) ([]Row, bool) {
	raw, err := e.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrKeyNotFound):
		metrics.CacheLookup("miss")
		return nil, false
	case err != nil:
		metrics.CacheLookup("error")
		e.logger.WithError(err).Warn("result cache read failed")
		return nil, false
	}
	rows, err := decodeRows(raw)
	if err != nil {
		metrics.CacheLookup("error")
		e.logger.WithError(err).Warn("result cache entry is corrupt")
		return nil, false
	}
	metrics.CacheLookup("hit")
	return rows, true
}

// decodeRows keeps integers as int64 instead of float64 and turns RFC3339
// strings back into time.Time.
func decodeRows(raw string) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		for k, v := range row {
			switch val := v.(type) {
			case json.Number:
				if i, err := val.Int64(); err == nil {
					row[k] = i
				} else if f, err := val.Float64(); err == nil {
					row[k] = f
				}
			case string:
				if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
					row[k] = ts
				}
			}
		}
	}
	return rows, nil
}
