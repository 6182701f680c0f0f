// Package subvisor supervises long-running, resumable subscriptions to
// an event store.
//
// Each Subscription owns a single background listener goroutine bound
// to an eventstore.Client subscribe call, tracks the last delivered
// position through a checkpoint.Checkpoint so delivery can resume after
// an interruption, and supports an asynchronous graceful-stop protocol
// with a hard deadline. A WatchDog periodically revives subscriptions
// whose listener died, and a Subscriptions registry tracks a named
// collection of them.
//
// Delivery guarantees: the checkpoint is advanced when an event is
// delivered, before the user handler runs. If the handler fails after
// the checkpoint advanced, a restart resumes after that event: the
// supervisor provides at-least-once processing, with a checkpoint that
// may be slightly ahead of handler-visible progress.
package subvisor
