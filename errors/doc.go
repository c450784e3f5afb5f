// Package errors provides the coded error taxonomy shared by pods, hosts and
// proxies.
//
// Every failure that crosses a pod boundary is an *AppError carrying a
// machine-readable ErrorCode, so a remote caller can tell a protocol misuse
// (unknown iterator key, unknown method) from a transient condition (lock
// timeout, unavailable host) without parsing messages.
package errors
