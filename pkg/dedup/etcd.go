package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	DefaultKeyPrefix = "/socketmode/envelopes/"

	dialTimeout = 5 * time.Second
)

// Etcd is a store of recently seen envelope IDs in an etcd cluster, which is
// shared by all the instances of a multi-instance deployment. Each ID is a
// key that expires with a lease, after a TTL.
type Etcd struct {
	kv     clientv3.KV
	lease  clientv3.Lease
	prefix string
	ttl    time.Duration
}

// NewEtcdClient creates an etcd gRPC client for the given endpoints.
func NewEtcdClient(endpoints []string) (*clientv3.Client, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return c, nil
}

func NewEtcd(c *clientv3.Client, prefix string, ttl time.Duration) *Etcd {
	return newEtcd(c.KV, c.Lease, prefix, ttl)
}

func newEtcd(kv clientv3.KV, lease clientv3.Lease, prefix string, ttl time.Duration) *Etcd {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl < time.Second {
		ttl = DefaultTTL
	}
	return &Etcd{kv: kv, lease: lease, prefix: prefix, ttl: ttl}
}

// Seen creates a key for the given envelope ID if it doesn't exist yet, in a
// single transaction, and reports whether the key already existed. Concurrent
// calls with the same ID in different instances report false exactly once.
func (e *Etcd) Seen(ctx context.Context, envelopeID string) (bool, error) {
	lr, err := e.lease.Grant(ctx, int64(e.ttl.Seconds()))
	if err != nil {
		return false, fmt.Errorf("failed to grant etcd lease: %w", err)
	}

	key := e.prefix + envelopeID
	resp, err := e.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, time.Now().UTC().Format(time.RFC3339), clientv3.WithLease(lr.ID))).
		Commit()
	if err != nil {
		return false, fmt.Errorf("failed to commit etcd transaction: %w", err)
	}

	if resp.Succeeded {
		return false, nil
	}

	// The key already exists, so the new lease is unnecessary.
	if _, err := e.lease.Revoke(ctx, lr.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("lease_id", int64(lr.ID)).Msg("failed to revoke unused etcd lease")
	}
	return true, nil
}
