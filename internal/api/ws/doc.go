// Package ws streams change notifications to WebSocket clients.
//
// A client connects to /stream, optionally passing ?topics=a,b to filter,
// and receives one "event" message per published notification:
//
//	{"type":"event","topic":"sources-changed","timestamp":1700000000}
//
// Clients may send {"type":"ping"} and receive {"type":"pong"}.
package ws
