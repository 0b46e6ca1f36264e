// Package main is the entry point of the Shelf plugin host.
//
// The host loads source and tracker packages, runs each in its own script
// context and exposes them over a JSON API and a WebSocket change stream.
//
// Usage:
//
//	# Serve the API (configuration from SHELF_CONFIG and env vars)
//	shelf serve
//
//	# Manage packages without starting the server
//	shelf list
//	shelf install ./demo.zip
//	shelf install https://example.org/packages/demo.zip
//	shelf batch https://example.org/index.json
//	shelf remove demo
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
