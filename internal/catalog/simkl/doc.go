// Package simkl implements the catalog.Resolver contract against the Simkl
// API: title search, mark-watched delivery, a connectivity probe, and the
// device-code authentication flow.
package simkl
