// Package session holds the upload sessions known to the relay.
//
// A Session is created by the connection that registers an upload and lives
// until that connection closes. Other connections reach it only through a
// Registry lookup by token or short token; they never own it.
package session
