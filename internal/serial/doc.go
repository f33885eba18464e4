// Package serial exposes a byte-level view of a UART-style channel:
// non-blocking availability checks and single-byte reads on the receive side,
// plain text and byte writes on the transmit side.
//
// On Linux the device is a TTY configured in raw 8N1 mode. Any other
// io.ReadWriteCloser can be wrapped with NewPort, which is how tests and
// pipes use it.
package serial
