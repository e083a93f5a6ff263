// Package catalog defines the contract between the scrobble engine and the
// remote catalog service: candidate resolution, mark-watched delivery, and
// the failure taxonomy that decides backlog routing.
package catalog
