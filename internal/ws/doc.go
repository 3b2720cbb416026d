// Package ws implements the WebSocket hub for the jobwatch status server.
//
// Hub manages a set of connected clients and broadcasts the current monitor
// status to all of them on a configurable interval (default 5s in production).
//
// New(engine, notifier, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker — blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// status immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event":  "status",
//	  "status": { /* same schema as GET /api/v1/health */ },
//	  "alerts": [ /* most recent alerts, newest first, capped at 20 */ ]
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. WebSocket endpoint is mounted at /ws/stream by the server.
package ws
