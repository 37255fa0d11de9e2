// Command server runs the shell host: the container and lifecycle
// orchestrator behind a windowed multi-surface UI, exposed over a REST
// control API and a websocket event stream.
//
// Configuration comes from SHELLHOST_* environment variables; the
// flags -port, -host-addr, and -profiles override the common ones.
package main
