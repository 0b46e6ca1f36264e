// Package tracker provides the façade over tracker packages and the login
// handshake built on it.
//
// A tracker reports login results asynchronously: HandleLoginCallback only
// hands the redirect URL to the guest, which later calls setLoginStatus.
// LoginFlow subscribes to the tracker's login-status topic before showing
// the login page so that notification is never missed.
package tracker
