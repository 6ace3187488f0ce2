/*
Package channel implements a duplex, message framed byte channel between two
endpoints.

A DuplexChannel owns two ring buffers, bufA and bufB, that live as long as
the channel. The first endpoint to open writes into bufA and reads from bufB,
the second one is bound the other way round, so that whatever one side writes
the other side reads.

Every Write produces exactly one frame: a 4 byte little-endian length header
followed by the payload after the enabled transforms (see package transform)
were applied. Reads deliver the payload of one frame over as many calls as
the caller's buffer size requires. After the last byte of a frame the next
Read returns 0 and a nil error to mark the message boundary.

	ch, _ := channel.New(channel.Config{BufferSize: 4096, MaxEndpoints: 2})
	a, _ := ch.Open()
	b, _ := ch.Open()

	_ = a.SetTransform(transform.Rot13, true)
	_, _ = a.Write(ctx, []byte("shmowzow!"))

	msg, _ := channel.ReadMessage(ctx, b, 64) // "fuzbjmbj!"

Blocking calls suspend when the ring buffer is full or empty and are woken
by the other side. They return ErrInterrupted when their context is done
and ErrClosed when their endpoint is closed. Nothing is retried internally.

Both buffers and the reader progress through a partially delivered frame
belong to the channel, not to an endpoint. Closing an endpoint releases its
slot but keeps all buffered data for the next endpoint that opens.
*/
package channel
