package tx

import (
	"context"
	"sync"
	"time"

	dErrors "vigia/pkg/domain-errors"
)

// numShards trades memory for contention: writes keyed to different shards
// never block each other, writes to the same key always serialize.
const numShards = 128

// defaultTxTimeout is the maximum duration a sharded transaction may hold its
// shard lock.
const defaultTxTimeout = 5 * time.Second

// ShardedRunner provides the in-memory equivalent of a row-locked database
// transaction: operations on the same key (pass ID, resident ID) serialize on
// one of N mutex shards selected by an FNV-1a hash of the key.
type ShardedRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewShardedRunner constructs an in-memory transaction runner.
func NewShardedRunner() *ShardedRunner {
	return &ShardedRunner{timeout: defaultTxTimeout}
}

func (r *ShardedRunner) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	shard := hashKey(key) % numShards
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	// Recheck after acquiring the lock: a queued caller may have waited past
	// its deadline.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// hashKey uses FNV-1a for even shard distribution.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
