// Package driving provides interfaces for use-case entry points
// (primary/inbound ports) exposed by the core services.
package driving
