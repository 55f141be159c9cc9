// Package session houses concrete implementations of core.SessionStore.
// A session holds the host's event history (user turns, assistant replies
// and agent performs) from which agent logs are produced.
package session
