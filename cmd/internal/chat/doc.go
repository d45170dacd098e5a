// Package chat implements direct messaging: one conversation per unordered
// user pair, persisted messages, and a WebSocket fanout of new messages to
// connected participants.
//
// Persistence lives behind Store; the Hub only handles in-memory delivery to
// live connections and never blocks a sender.
package chat
