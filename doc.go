// Package qrscan scans image-like inputs for QR codes.
//
// Scans are served by one of two backends: an out-of-process decode
// worker spoken to over a correlation-id message channel, or an
// in-process native detector. The scanner selects a backend per
// process, normalizes the input into a drawable image, projects it onto
// a reusable raster surface, dispatches the decode, and applies timeout
// and retry policy. Engines the scanner creates for a call are closed on
// every exit path; caller-supplied engines are never closed.
package qrscan
