// Package manifest reads and validates plugin package directories.
//
// A package directory holds manifest.json and one entry script (code.js
// unless the manifest names another). Load is the gate used both at
// startup discovery and on the staging directory during installs, so it
// never writes anything.
package manifest
