// Command couchlog is the control CLI for the couchlog daemon. It talks to a
// running couchlogd over a Unix socket and also hosts local utilities such as
// config bootstrap and the Simkl device-code auth flow.
package main
