// Package chatsession is the realtime protocol engine of the chat client.
//
// A Session owns one websocket (via connection.Manager) and routes every
// inbound frame through Dispatch, which holds the session lock while the
// stream assembler and selection synchronizer update the conversation store.
// User actions (SendMessage, SelectProfile, SelectPackage, NewConversation)
// take the same lock, so events and actions never interleave.
//
// Layout:
//   - protocol: wire frames and the JSON codec.
//   - connection: dialing, the read loop, fixed-delay reconnect.
//   - stream: chunk reassembly and markdown finalization.
//   - selection: profile/package/conversation request and ack handling.
//   - store: the ordered message list observed by the UI.
//
// Store observers and the Notifier run while the session lock is held; they
// may read from the Session but must not call its mutating methods.
package chatsession
