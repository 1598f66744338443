// Package discovery streams supported items out of the content store,
// filtering on an explicitly populated media-type handler registry.
package discovery
