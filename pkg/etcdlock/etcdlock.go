// Package etcdlock provides a lease-backed mutex so only one replica runs a
// scheduled sweep at a time.
package etcdlock

import (
	"context"
	"errors"
	"time"

	etcd "go.etcd.io/etcd/client/v3"
)

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("etcdlock: key is held by another owner")

// TTL is the lease length in seconds. The lease is kept alive while held and
// expires on its own if the holder dies.
const TTL = 10

// Locker acquires locks on one etcd cluster.
type Locker struct {
	client *etcd.Client
	prefix string
}

// New dials etcd. prefix namespaces every key the locker touches.
func New(endpoints []string, prefix string) (*Locker, error) {
	client, err := etcd.New(etcd.Config{
		Endpoints:   endpoints,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &Locker{client: client, prefix: prefix}, nil
}

// Close releases the etcd client.
func (l *Locker) Close() error {
	return l.client.Close()
}

// Lock is a held lock.
type Lock struct {
	client  *etcd.Client
	leaseID etcd.LeaseID
	cancel  context.CancelFunc
}

// TryLock makes a few attempts to create key bound to a fresh lease and gives
// up with ErrLocked if it stays taken.
func (l *Locker) TryLock(ctx context.Context, key string) (*Lock, error) {
	key = l.prefix + key

	leaseResp, err := l.client.Grant(ctx, TTL)
	if err != nil {
		return nil, err
	}

	keepCtx, cancel := context.WithCancel(context.Background())
	lock := &Lock{client: l.client, leaseID: leaseResp.ID, cancel: cancel}

	ch, err := l.client.KeepAlive(keepCtx, leaseResp.ID)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	go func() {
		for range ch {
		}
	}()

	for i := 0; i < 5; i++ {
		res, err := l.client.Txn(ctx).
			If(etcd.Compare(etcd.CreateRevision(key), "=", 0)).
			Then(etcd.OpPut(key, "locked", etcd.WithLease(leaseResp.ID))).
			Commit()
		if err == nil && res.Succeeded {
			return lock, nil
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(15 * time.Millisecond)
	}

	lock.Unlock()
	return nil, ErrLocked
}

// Unlock stops the keep-alive and revokes the lease, deleting the key.
func (l *Lock) Unlock() {
	l.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = l.client.Revoke(ctx, l.leaseID)
}
