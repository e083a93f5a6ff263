// Package titles turns raw window titles and media filenames into normalized
// candidates (name, year, season/episode). Parsing is pure and deterministic:
// no I/O, identical input always yields identical output.
package titles
