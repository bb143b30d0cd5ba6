// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/marko-gacesa/udpsync/udpsync/message"
)

// Reader reads records written by Writer.
type Reader struct {
	closer io.Closer
	dec    *zstd.Decoder
	r      *bufio.Reader
	buf    []byte
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := newReader(f, f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return r, nil
}

// NewReader returns a reader of r. Closing the reader doesn't close r.
func NewReader(r io.Reader) (*Reader, error) {
	return newReader(r, nil)
}

func newReader(r io.Reader, closer io.Closer) (*Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(dec, 64<<10)

	var head [len(magic)]byte
	if _, err := io.ReadFull(br, head[:]); err != nil || head != magic {
		dec.Close()
		return nil, ErrBadMagic
	}

	return &Reader{
		closer: closer,
		dec:    dec,
		r:      br,
	}, nil
}

// Next returns the next record. It returns io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, ErrInvalid
		}
		return Record{}, err
	}

	var size uint32
	s := message.NewDeserializer(prefix[:])
	s.Get32(&size)
	if size > MaxRecordSize {
		return Record{}, ErrInvalid
	}

	if cap(r.buf) < int(size) {
		r.buf = make([]byte, size)
	}
	r.buf = r.buf[:size]

	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return Record{}, ErrInvalid
	}

	var rec Record
	rest, err := rec.Get(r.buf)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if len(rest) != 0 {
		return Record{}, ErrInvalid
	}

	return rec, nil
}

func (r *Reader) Close() error {
	r.dec.Close()
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
