// Package events is the change notification bus owned by the registry.
//
// Topics are plain strings. The registry posts sources-changed and
// trackers-changed after installs and removals; trackers post
// login-status.<id> through the setLoginStatus capability.
package events
