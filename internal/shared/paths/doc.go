// Package paths provides standardized filesystem paths.
//
// # Directory Structure
//
//	<data dir>/
//	  ├── Sources/          (text, image and video packages)
//	  │   └── <id>/         (manifest.json + entry script)
//	  ├── Trackers/         (tracker packages)
//	  ├── .staging/         (archives extracted during install)
//	  ├── .downloads/       (remote archives in flight)
//	  ├── preferences.json  (settings and storage values)
//	  ├── keychain.json     (encrypted credentials)
//	  └── keychain.key      (keychain secret when none is configured)
//
// # Usage
//
//	import "github.com/GriffinCanCode/Shelf/backend/internal/shared/paths"
//
//	layout := paths.New(cfg.DataDir)
//	dir := layout.Package(layout.Sources(), "demo")
package paths
