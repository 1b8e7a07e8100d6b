package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestMemory(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	steps := []struct {
		name    string
		advance time.Duration
		id      string
		want    bool
	}{
		{name: "first_delivery", id: "1", want: false},
		{name: "redelivery", advance: 10 * time.Second, id: "1", want: true},
		{name: "other_envelope", id: "2", want: false},
		{name: "redelivery_before_ttl", advance: 49 * time.Second, id: "1", want: true},
		{name: "after_ttl", advance: time.Second, id: "1", want: false},
		{name: "redelivery_after_reset", id: "1", want: true},
	}

	for _, s := range steps {
		now = now.Add(s.advance)
		got, err := m.Seen(t.Context(), s.id)
		if err != nil {
			t.Fatalf("%s: Seen() error = %v", s.name, err)
		}
		if got != s.want {
			t.Errorf("%s: Seen(%q) = %v, want %v", s.name, s.id, got, s.want)
		}
	}
}

func TestMemoryGC(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	for _, id := range []string{"1", "2", "3"} {
		_, _ = m.Seen(t.Context(), id)
	}
	if n := m.Len(); n != 3 {
		t.Fatalf("Len() = %d, want 3", n)
	}

	now = now.Add(2 * time.Minute)
	_, _ = m.Seen(t.Context(), "4")
	if n := m.Len(); n != 1 {
		t.Errorf("Len() after TTL = %d, want 1", n)
	}
}

type fakeKV struct {
	clientv3.KV

	mu   sync.Mutex
	keys map[string]clientv3.LeaseID
	err  error
}

func (kv *fakeKV) Txn(context.Context) clientv3.Txn {
	return &fakeTxn{kv: kv}
}

type fakeTxn struct {
	kv   *fakeKV
	cmps []clientv3.Cmp
	ops  []clientv3.Op
}

func (t *fakeTxn) If(cs ...clientv3.Cmp) clientv3.Txn {
	t.cmps = append(t.cmps, cs...)
	return t
}

func (t *fakeTxn) Then(ops ...clientv3.Op) clientv3.Txn {
	t.ops = append(t.ops, ops...)
	return t
}

func (t *fakeTxn) Else(...clientv3.Op) clientv3.Txn {
	return t
}

// Commit supports only a single "create revision = 0" comparison.
func (t *fakeTxn) Commit() (*clientv3.TxnResponse, error) {
	t.kv.mu.Lock()
	defer t.kv.mu.Unlock()

	if t.kv.err != nil {
		return nil, t.kv.err
	}

	key := string(t.cmps[0].Key)
	if _, ok := t.kv.keys[key]; ok {
		return &clientv3.TxnResponse{Succeeded: false}, nil
	}
	for _, op := range t.ops {
		t.kv.keys[string(op.KeyBytes())] = 1
	}
	return &clientv3.TxnResponse{Succeeded: true}, nil
}

type fakeLease struct {
	clientv3.Lease

	mu      sync.Mutex
	granted []int64
	revoked int
	err     error
}

func (l *fakeLease) Grant(_ context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.granted = append(l.granted, ttl)
	return &clientv3.LeaseGrantResponse{ID: clientv3.LeaseID(len(l.granted)), TTL: ttl}, nil
}

func (l *fakeLease) Revoke(context.Context, clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked++
	return &clientv3.LeaseRevokeResponse{}, nil
}

func TestEtcd(t *testing.T) {
	kv := &fakeKV{keys: map[string]clientv3.LeaseID{}}
	lease := &fakeLease{}
	e := newEtcd(kv, lease, "", 90*time.Second)

	for i, want := range []bool{false, true, true} {
		got, err := e.Seen(t.Context(), "envelope")
		if err != nil {
			t.Fatalf("Seen() #%d error = %v", i, err)
		}
		if got != want {
			t.Errorf("Seen() #%d = %v, want %v", i, got, want)
		}
	}

	if _, ok := kv.keys[DefaultKeyPrefix+"envelope"]; !ok {
		t.Errorf("etcd keys = %v, want %q", kv.keys, DefaultKeyPrefix+"envelope")
	}
	if len(lease.granted) != 3 || lease.granted[0] != 90 {
		t.Errorf("granted leases = %v, want 3 x 90s", lease.granted)
	}
	if lease.revoked != 2 {
		t.Errorf("revoked leases = %d, want 2", lease.revoked)
	}
}

func TestEtcdConcurrentDeliveries(t *testing.T) {
	kv := &fakeKV{keys: map[string]clientv3.LeaseID{}}
	e := newEtcd(kv, &fakeLease{}, "/test/", time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen, err := e.Seen(t.Context(), "envelope")
			if err != nil {
				t.Errorf("Seen() error = %v", err)
				return
			}
			if !seen {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Errorf("first deliveries = %d, want 1", firsts)
	}
}

func TestEtcdErrors(t *testing.T) {
	wantErr := errors.New("etcd unavailable")

	e := newEtcd(&fakeKV{keys: map[string]clientv3.LeaseID{}}, &fakeLease{err: wantErr}, "", time.Minute)
	if _, err := e.Seen(t.Context(), "1"); !errors.Is(err, wantErr) {
		t.Errorf("Seen() with lease error = %v, want %v", err, wantErr)
	}

	e = newEtcd(&fakeKV{err: wantErr}, &fakeLease{}, "", time.Minute)
	if _, err := e.Seen(t.Context(), "1"); !errors.Is(err, wantErr) {
		t.Errorf("Seen() with txn error = %v, want %v", err, wantErr)
	}
}
