// Package capability installs host functions into guest script contexts.
//
// Injected globals:
//   - console.log/info/warn/error/debug: the package logger
//   - fetch: asynchronous HTTP through the shared client, settled on the loop
//   - parseHTML, parseXML, sanitizeHTML, stripHTML: synchronous DOM helpers
//   - getSettingsValue, getStorageValue, setStorageValue: preferences
//   - getKeychainValue, setKeychainValue: the encrypted keychain
//   - setLoginStatus: tracker login flag plus a login-status.<id> event
//
// Keys are namespaced as <namespace>.<category>.<id>.<key> where category
// is sources or trackers. A guest may pass an explicit id only if it is
// its own.
package capability
