// Package ring provides the fixed-capacity circular byte store that backs
// each direction of a duplex channel.
//
// The buffer reserves one slot so that equal cursors always mean "empty";
// a buffer of capacity N therefore holds at most N-1 live bytes.
//
// Concurrency:
//
//	A RingBuffer supports exactly one writer and one reader at a time. The
//	writer is the only goroutine that moves the write cursor and the reader is
//	the only one that moves the read cursor. Both cursors are atomics: a cursor
//	is stored after the bytes it covers have been copied, and loaded before the
//	other side copies, so no lock is needed around the storage itself.
//	Blocking and waking is not handled here, see the channel package.
package ring
