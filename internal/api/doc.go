// Package api implements the local status server for the onroad manager.
//
// This package provides:
//   - Read-only REST endpoints for the latest managerState and params
//   - WebSocket hub that streams every published managerState
//   - Prometheus exposition of the manager's collectors
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Endpoints
//
// All routes live under /api/v1:
//
//	GET /health         liveness plus broker checks
//	GET /status         the most recent managerState
//	GET /params         primary partition, DontLog values redacted
//	GET /params/{key}   one key
//	GET /system         Go runtime and connection statistics
//	GET /metrics        Prometheus exposition
//	GET /ws             WebSocket; subscribe to "manager.state"
//
// The server has no authentication and binds to loopback by default.
// Nothing here can change what the manager supervises.
package api
