// Package bridge runs typed host calls against guest scripts.
//
// A call draws a success and an error token, registers them as one entry
// in the context's pending table, and dispatches plugin[method] on the
// context's event loop. Arguments and results cross as JSON only.
//
// Errors:
//   - ErrRejected: the guest threw or rejected
//   - ErrDecode: the settled value did not fit the requested type, or held
//     something JSON cannot carry
//   - ErrTimeout: the guest never settled
//   - ctx.Err(): the caller gave up
//
// Optional turns every error into absence for the façades.
package bridge
