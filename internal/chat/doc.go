// Package chat implements the real-time chat presence and broadcast core.
//
// The Engine is a small state machine driven by inbound events (connect,
// join, message, typing start/stop, disconnect). It owns the Registry of
// joined participants and the TypingTracker, and fans outbound frames out to
// attached connections through the Conn interface. Every event is applied
// by a single dispatch goroutine (Engine.Run), so chat messages are observed
// by all connections in server arrival order.
//
// Broadcast scope:
//
//	chat_message                         all attached connections, sender included
//	user_joined, user_left, user_typing  every connection except the originator
//	system_message                       the originating connection only
//
// Delivery is best effort: a connection whose queue is full or closed misses
// the frame and the fan-out continues with the remaining targets.
package chat
