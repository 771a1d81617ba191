// Package repository persists task records in a Redis-compatible
// store and keeps the secondary indexes that make listing cheap.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                        Repository                          │
//	│                                                            │
//	│  writes ──> writer client          reads ──> reader client │
//	└──────────────┬─────────────────────────────┬───────────────┘
//	               │                             │
//	               v                             v
//	       ┌───────────────────────────────────────────┐
//	       │              Redis-compatible store       │
//	       │                                           │
//	       │  task:{id}            JSON record, TTL=T  │
//	       │  task:{id}:metadata   hash, TTL=T+grace   │
//	       │  task:id:sequence     counter, no TTL     │
//	       │  index:tasks          set of ids, TTL=T   │
//	       │  index:service:{s}    set of ids, TTL=T   │
//	       │  index:service:{s}:user:{u}   ids, TTL=T  │
//	       │  index:service:{s}:users    users, TTL=T  │
//	       └───────────────────────────────────────────┘
//
// # TTL Discipline
//
// Every key belonging to a task shares the configured TTL, re-stamped
// on every save, so a record and its index memberships age out
// together. The metadata breadcrumb uses TTL+grace: after the primary
// key expires the breadcrumb still answers "which service and user did
// this task belong to", which is exactly what index cleanup needs.
//
// # Expiration Reconciliation
//
// Redis removes expired keys itself but knows nothing about the index
// sets. The ExpirationListener subscribes to __keyevent@{db}__:expired
// and calls HandleTaskExpired for every primary task key the store
// drops. Breadcrumb and counter expirations are filtered out by key
// shape. Cleanup is idempotent, so duplicate or replayed notifications
// are harmless.
//
// # Consistency
//
// Mutations are read-modify-write without locks; concurrent writers
// are last-write-wins. List reads are eventually consistent with
// concurrent mutations. Stricter task ordering is enforced above this
// package by the service layer's transition checks.
//
// # Usage
//
//	provider, err := repository.NewProvider(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer provider.Close()
//
//	repo, err := repository.NewRedisRepository(provider.Writer(), provider.Reader(), cfg.TaskTTL())
//	if err != nil {
//		return err
//	}
//
//	listener := repository.NewExpirationListener(provider.Writer(), repo, provider.DB())
//	listener.Start()
//	defer listener.Stop()
//
// The store must run with keyspace notifications enabled, for example
// "notify-keyspace-events Ex", or expiration reconciliation will never
// fire.
package repository
