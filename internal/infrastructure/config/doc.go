// Package config provides 12-factor configuration management for the plugin host.
//
// Configuration is layered: built-in defaults, then an optional YAML or TOML
// file named by SHELF_CONFIG, then environment variables.
//
// Configuration Sections:
//   - Shelf: data directory holding Sources/, Trackers/ and the stores
//   - Server: HTTP API settings (port, host)
//   - Bridge: timeout for host calls into guest code
//   - Sandbox: script load timeout, call stack limit, warm pool size
//   - HTTP: outbound client used by fetch and installs
//   - Install: batch concurrency, archive size limit, login timeout
//   - Store: preferences backend and keychain secret
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Data in %s, bridge timeout %s\n", cfg.Shelf.DataDir, cfg.Bridge.Timeout.Std())
//
// Environment Variables:
//   - SHELF_DATA_DIR, SHELF_CONFIG
//   - SERVER_PORT (or PORT), SERVER_HOST (or HOST)
//   - BRIDGE_TIMEOUT, SANDBOX_LOAD_TIMEOUT, SANDBOX_MAX_CALL_STACK, SANDBOX_POOL_SIZE
//   - HTTP_TIMEOUT, HTTP_RETRY_MAX, HTTP_RATE_LIMIT, HTTP_USER_AGENT, HTTP_MAX_BODY_BYTES
//   - INSTALL_CONCURRENCY, INSTALL_MAX_ARCHIVE_BYTES, INSTALL_LOGIN_TIMEOUT
//   - STORE_BACKEND, STORE_REDIS_ADDR, STORE_REDIS_PASSWORD, STORE_REDIS_DB, STORE_KEYCHAIN_SECRET
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
