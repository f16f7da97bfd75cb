// Package offlinequeue provides durable backends for the httpclient offline
// queue: mutating requests that fail while the network is down are written
// here so a separate sync process can replay them once connectivity returns.
//
// Every backend implements the httpclient.OfflineQueue contract and stores
// the same JSON Entry record, so a drainer can be written once against
// DecodeEntry regardless of which backend holds the data.
//
// # Choosing a backend
//
//   - Memory: bounded in-process buffer. No durability across restarts;
//     suited to tests and best-effort single-process deployments.
//   - Redis: RPUSH onto a list, FIFO drain with LPOP. Survives restarts and
//     is shared across instances.
//   - SQL: one row per entry via sqlx named inserts. Transactional drains.
//   - AMQP: persistent messages on a durable queue; the broker itself is the
//     drainer's work source.
//
// # Quick Start
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	queue := offlinequeue.NewRedis(rdb, offlinequeue.WithRedisTTL(7*24*time.Hour))
//
//	client, err := httpclient.New(
//	    httpclient.WithOfflineQueue(queue),
//	    httpclient.WithConnectivity(status),
//	)
//
// Draining is deliberately out of scope. The client only ever enqueues;
// replay policy (ordering, retry, conflict handling) belongs to the
// consuming application.
package offlinequeue
