// Package logger provides structured logging for podflow components using
// zerolog.
//
// Loggers are component scoped: pods, hosts and proxies each ask for a named
// logger and attach pod fields (pod key, partition, iterator key, call id) to
// their events.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("pod")
//	log.Debug("iterator registered", logger.Fields(logger.FieldPod, "1:0", logger.FieldIteratorKey, key))
package logger
