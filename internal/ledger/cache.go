package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const reconciliationCacheKey = "ledger:reconciliation"

// Cache keeps the latest reconciliation report in Redis so repeated report
// reads do not rescan the whole ledger.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetReconciliation returns the cached report, or ok=false on miss.
func (c *Cache) GetReconciliation(ctx context.Context) ([]ReconciliationRow, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, reconciliationCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []ReconciliationRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

// SetReconciliation stores the report.
func (c *Cache) SetReconciliation(ctx context.Context, rows []ReconciliationRow) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, reconciliationCacheKey, payload, c.ttl).Err()
}

// Invalidate drops the cached report, called after stock-mutating flows commit.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, reconciliationCacheKey).Err()
}
