package wire

import (
	"io"

	"golang.org/x/xerrors"
)

// defaultReadChunk is the size of each underlying Read call. Segment
// payloads can exceed this; FrameReader keeps accumulating into its
// internal buffer until a full frame is available.
const defaultReadChunk = 64 * 1024

// FrameReader drains an io.Reader by frame, buffering trailing bytes
// between calls. It is not safe for concurrent use.
type FrameReader struct {
	r   io.Reader
	buf []byte
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadEnvelope blocks until a full frame is available, decodes it, and
// returns the envelope. It returns io.EOF (possibly wrapped) once the
// underlying reader is exhausted with no partial frame pending.
func (fr *FrameReader) ReadEnvelope() (*Envelope, error) {
	for {
		if env, remainder, err := Decode(fr.buf); err != nil {
			fr.buf = remainder
			return nil, err
		} else if env != nil {
			fr.buf = remainder
			return env, nil
		}

		chunk := make([]byte, defaultReadChunk)
		n, err := fr.r.Read(chunk)
		if n > 0 {
			fr.buf = append(fr.buf, chunk[:n]...)
		}
		if err != nil {
			if n > 0 {
				// Give the caller a chance to decode what was buffered
				// before surfacing the read error on the next call.
				if env, remainder, decErr := Decode(fr.buf); decErr == nil && env != nil {
					fr.buf = remainder
					return env, nil
				}
			}
			return nil, xerrors.Errorf("wire: read frame: %w", err)
		}
	}
}
