// Package server implements the HTTP and WebSocket surface of the game portal.
//
// The Gateway upgrades /ws requests and runs a read and a write pump per
// Client; every inbound frame becomes a chat.Event for the engine. The REST
// handlers cover accounts, the product catalog and chat presence, and are
// mounted on a chi router together with CORS, auth rate limiting and
// Prometheus request metrics.
package server
