// Package gps captures a raw fix sentence from a serial GNSS receiver.
//
// Sentences are matched by substring only; there is no checksum check or
// field parsing. Callers get the sentence text exactly as received.
package gps
