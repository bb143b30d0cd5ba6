// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package replay

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/marko-gacesa/udpsync/udpsync/message"
	"github.com/marko-gacesa/udpsync/udpsync/sim"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
)

var ErrClosed = errors.New("replay writer closed")

// Writer appends length prefixed records to a zstd stream.
type Writer struct {
	mu     sync.Mutex
	closer io.Closer
	enc    *zstd.Encoder
	w      *bufio.Writer
	buf    []byte
	count  int
}

// Create creates the replay file, along with its directory.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w, err := newWriter(f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return w, nil
}

// NewWriter returns a writer to w. Closing the writer doesn't close w.
func NewWriter(w io.Writer) (*Writer, error) {
	return newWriter(w, nil)
}

func newWriter(w io.Writer, closer io.Closer) (*Writer, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}

	bw := bufio.NewWriterSize(enc, 64<<10)
	if _, err := bw.Write(magic[:]); err != nil {
		_ = enc.Close()
		return nil, err
	}

	return &Writer{
		closer: closer,
		enc:    enc,
		w:      bw,
	}, nil
}

// Record writes a single frame. It implements the server's recorder.
func (w *Writer) Record(frame uint32, inputs []sim.Input, snap *snapshot.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return ErrClosed
	}

	r := Record{Frame: frame, Inputs: inputs, Snapshot: snap}

	// reserve the space for the length prefix
	w.buf = r.Put(append(w.buf[:0], 0, 0, 0, 0))
	size := len(w.buf) - 4
	if size > MaxRecordSize {
		return ErrInvalid
	}

	s := message.NewSerializer(w.buf[:0])
	s.Put32(uint32(size))

	if _, err := w.w.Write(w.buf); err != nil {
		return err
	}

	w.count++

	return nil
}

// Count returns the number of written records.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Flush writes buffered records to the compressed stream.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return ErrClosed
	}

	if err := w.w.Flush(); err != nil {
		return err
	}

	return w.enc.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return nil
	}

	err := w.w.Flush()
	err = errors.Join(err, w.enc.Close())
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
	}

	w.w = nil
	w.enc = nil

	return err
}
