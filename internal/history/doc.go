// Package history keeps a local record of every completion that was reported
// to the catalog service. The daemon consults it on startup so a title
// already marked watched is never reported twice across restarts.
package history
