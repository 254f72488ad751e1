// Package xam provides forward-only reading of alignment records from SAM or
// BAM files.  It is deliberately minimal: no index, no sharding, a single
// sequential pass, which is all the ping-pong scanner needs since it
// accumulates genome-wide stacks from every record anyway.
package xam

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// recordReader is satisfied by both sam.Reader and bam.Reader.
type recordReader interface {
	Read() (*sam.Record, error)
}

// Reader iterates over the records of one SAM or BAM file.  The zero value is
// not usable; call Open.
type Reader struct {
	path       string
	in         file.File
	decompress io.Closer
	rr         recordReader
	header     *sam.Header
	rec        *sam.Record
	err        error
}

// Open opens path for reading.  Paths ending in ".bam" are decoded as BAM;
// everything else is treated as SAM text, transparently decompressed if
// compressed.  "-" reads SAM from stdin.  Paths may be anything
// grailbio/base/file understands, including S3 URLs.
func Open(ctx context.Context, path string) (*Reader, error) {
	r := &Reader{path: path}
	var in io.Reader
	if path == "-" {
		in = os.Stdin
	} else {
		f, err := file.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		r.in = f
		in = f.Reader(ctx)
	}
	if strings.HasSuffix(path, ".bam") {
		br, err := bam.NewReader(in, 1)
		if err != nil {
			r.close(ctx)
			return nil, errors.E(err, "xam.Open", path)
		}
		r.rr = br
		r.header = br.Header()
	} else {
		// compress.NewReader peeks at the stream to sniff the format, so its
		// reader must be used even when the input turns out to be plain text.
		dec, _ := compress.NewReader(in)
		r.decompress = dec
		sr, err := sam.NewReader(dec)
		if err != nil {
			r.close(ctx)
			return nil, errors.E(err, "xam.Open", path)
		}
		r.rr = sr
		r.header = sr.Header()
	}
	return r, nil
}

// Header returns the file's header.
func (r *Reader) Header() *sam.Header {
	return r.header
}

// Scan advances to the next record, returning false at end of input or on
// error.  A record that cannot be decoded is reported through Err; callers
// must treat that as fatal, since downstream statistics assume complete input.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	rec, err := r.rr.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		r.err = errors.E(err, "reading record from", r.path)
		return false
	}
	r.rec = rec
	return true
}

// Record returns the record read by the last successful Scan.
func (r *Reader) Record() *sam.Record {
	return r.rec
}

// Err returns the first error encountered while scanning, if any.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) close(ctx context.Context) error {
	var firstErr error
	if c, ok := r.rr.(io.Closer); ok {
		firstErr = c.Close()
	}
	if r.decompress != nil {
		if e := r.decompress.Close(); e != nil && firstErr == nil {
			firstErr = e
		}
	}
	if r.in != nil {
		if e := r.in.Close(ctx); e != nil && firstErr == nil {
			firstErr = e
		}
	}
	return firstErr
}

// Close releases the underlying file.  It does not return scan errors; check
// Err for those.
func (r *Reader) Close(ctx context.Context) error {
	return r.close(ctx)
}
