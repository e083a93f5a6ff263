// Package mediacache persists resolved catalog items keyed by normalized
// candidate string, so a title seen across sessions is identified without
// repeating the remote search.
package mediacache
