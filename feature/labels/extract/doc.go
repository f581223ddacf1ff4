// Package extract maps label filenames to order ids. Extraction is a pure
// function of the name: no I/O, no panics, and a non-conforming name is a
// normal "no id" outcome that the matcher turns into an orphan.
package extract
