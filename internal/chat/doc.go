// Package chat implements the two-party messaging core: deterministic room
// addressing, atomic fan-out message writes, per-user conversation indices,
// read markers, and live snapshot subscriptions.
//
// # Rooms
//
// A conversation between two users lives in a room whose key is derived
// from the two participant identifiers: lowercase both, sort, join with an
// underscore. RoomKey("U2", "u1") and RoomKey("u1", "U2") both yield
// "u1_u2", so either side can address the shared room without coordination.
//
// # Sending
//
// SendMessage performs one atomic store update that appends the message,
// refreshes the room's lastMessage/lastMessageTimestamp, ensures both
// participants and both userChatrooms index entries exist, and records the
// sender's read marker at the send timestamp (a sender has always read
// their own message). The call returns only after the store acknowledges
// the write, so the returned room key is immediately usable for Subscribe.
//
// Two concurrent sends into the same room may interleave on the room
// metadata (last writer wins) but both messages land in the log.
//
// # Listing and ordering
//
// Messages returns the room's full history ordered by ascending timestamp,
// with ties broken by the store-assigned message key. Ordering is always
// re-derived from the stored timestamps, never from call order.
//
// # Subscriptions
//
// Subscribe watches the room's message subtree and delivers a freshly
// ordered snapshot to the callback after every change (and once on
// subscribe). Cancel is idempotent and acts as a teardown barrier: once it
// returns, no further callback runs, even for a notification already in
// flight. Store errors inside the loop go to the error callback and never
// terminate the subscription.
package chat
