// Package logging wraps zap for the host.
//
// Development mode writes colored console lines, otherwise JSON.
// Components take a named child (logger.Named("registry")); guest code
// logs through logger.ForPackage, which tags every line with the owning
// package so console output from a plugin can be traced back to it.
//
//	logger := logging.NewDefault()
//	logger.ForPackage("demo", "Demo").Warn("guest warning")
package logging
