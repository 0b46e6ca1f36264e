// Package registry owns the set of installed packages.
//
// The registry discovers packages on disk, builds one script context and
// façade per package, and installs, replaces and removes packages.
//
// Components:
//   - Registry: in-memory instances plus startup discovery
//   - Install: archive acquisition, staging and the directory swap
//   - InstallBatch: bounded parallel installs from a listing URL
//   - keyedMutex: serializes operations on one package id
//
// Layout:
//   - <data>/Sources/<id>/manifest.json + entry script
//   - <data>/Trackers/<id>/manifest.json + entry script
//   - <data>/.staging and <data>/.downloads hold temporaries only
//
// Every successful install or remove publishes one change notification on
// sources-changed or trackers-changed. A batch publishes once per affected
// topic after all entries settle.
//
// Example Usage:
//
//	reg, err := registry.New(deps)
//	err = reg.Startup(ctx)
//	info, err := reg.Install(ctx, "https://example.com/demo.zip")
//	src, ok := reg.Source("demo")
//	err = reg.Remove(ctx, "demo")
package registry
