// Package storage provides the key/value stores behind plugin settings,
// plugin storage and the plugin keychain.
//
// Keys are namespaced as <namespace>.<category>.<package id>.<key> where
// namespace is settings, storage or keychain and category is sources or
// trackers. Backends:
//   - MemoryStore: process memory, used by tests and ephemeral hosts
//   - FileStore: one JSON document, atomically replaced on each write
//   - RedisStore: shared Redis database for multi-process hosts
//   - SecureStore: secretbox encryption over any other Store
package storage
