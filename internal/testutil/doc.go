// Package testutil contains builders that cut boilerplate when tests need
// sessions, perform events or memory entries. Not intended for production
// use.
package testutil
