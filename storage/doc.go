// Package storage contains implementations of core.FileStore, the generic
// file-storage abstraction the memory store is built on.
//
// The interface lives in the core package. This package provides the
// in-process backend plus shared path and glob helpers; durable backends live
// in sub-packages (local, s3, natsobj, dapr) so that only the wiring layer
// pulls in their vendor SDKs.
package storage
