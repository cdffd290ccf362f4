// Package status builds and publishes the managerState message.
//
// One ManagerState is produced per tick and handed to a Publisher. The
// manager normally publishes through a Multi that fans out to:
//   - MQTTPublisher: retained JSON on onroad/manager/managerState
//   - Latest: in-memory copy served by the local API
//   - HubPublisher: pushes to WebSocket clients
//   - InfluxRecorder: per-tick and per-process telemetry
//
// managerState is the only message schema the manager owns.
package status
