// Package broadcast fans messages out to in-process subscribers.
//
// MemoryBroadcaster never blocks the publisher: each subscriber owns a
// buffered channel and a message that does not fit is dropped for that
// subscriber and counted. Subscriptions end when the context passed to
// Subscribe is cancelled or when the subscriber is closed.
//
//	b := broadcast.NewMemoryBroadcaster[subscription.Event](64)
//	sub := b.Subscribe(ctx)
//	go func() {
//	    for msg := range sub.Receive() {
//	        notify(msg.Data)
//	    }
//	}()
//	_ = b.Broadcast(ctx, broadcast.Message[subscription.Event]{Data: ev})
package broadcast
