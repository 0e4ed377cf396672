// ABOUTME: Action queue package documentation
// ABOUTME: Describes phase keyed deferral used for lifecycle ordering
// Package queue defers actions until a phase is reached. The engine uses it
// to hold a suspend requested while a resume is still in flight (and the
// reverse) until the running transition completes.
package queue
