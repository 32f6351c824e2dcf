package zipfile

import (
	"compress/bzip2"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Decompressor produces a reader for the decompressed form of one entry's
// raw data stream.
type Decompressor func(io.Reader) (io.ReadCloser, error)

// config collects OpenArchive options.
type config struct {
	maxDecoderMemory uint64
	codecs           map[Method]Decompressor
}

// Option configures an Archive.
type Option func(*config)

// WithMaxDecoderMemory limits the maximum memory used by a zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *config) {
		c.maxDecoderMemory = limit
	}
}

// WithDecompressor registers or replaces the decompressor for a method.
func WithDecompressor(m Method, d Decompressor) Option {
	return func(c *config) {
		if c.codecs == nil {
			c.codecs = make(map[Method]Decompressor)
		}
		c.codecs[m] = d
	}
}

// registerBuiltins installs the closed set of supported methods.
func registerBuiltins(codecs map[Method]Decompressor, pool *decompressPool) {
	codecs[MethodStore] = func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}
	codecs[MethodDeflate] = func(r io.Reader) (io.ReadCloser, error) {
		return flate.NewReader(r), nil
	}
	codecs[MethodBzip2] = func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(bzip2.NewReader(r)), nil
	}
	codecs[MethodXZ] = func(r io.Reader) (io.ReadCloser, error) {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	}
	codecs[MethodZstd] = func(r io.Reader) (io.ReadCloser, error) {
		return pool.Get(r)
	}
}

// decompressPool manages reusable zstd decoders to reduce allocation
// overhead on the serving hot path.
type decompressPool struct {
	pool             *sync.Pool
	maxDecoderMemory uint64
}

func newDecompressPool(maxMemory uint64) *decompressPool {
	p := &decompressPool{maxDecoderMemory: maxMemory}
	p.pool = &sync.Pool{
		New: func() any {
			dec, err := p.newDecoder(nil)
			if err != nil {
				return nil
			}
			return dec
		},
	}
	return p
}

// Get returns a ReadCloser decoding zstd data from r. Closing it returns
// the decoder to the pool.
func (p *decompressPool) Get(r io.Reader) (io.ReadCloser, error) {
	dec, ok := p.pool.Get().(*zstd.Decoder)
	if !ok {
		var err error
		if dec, err = p.newDecoder(r); err != nil {
			return nil, err
		}
		return &pooledDecoder{dec: dec, pool: p}, nil
	}
	if err := dec.Reset(r); err != nil {
		dec.Close()
		newDec, nerr := p.newDecoder(r)
		if nerr != nil {
			return nil, nerr
		}
		dec = newDec
	}
	return &pooledDecoder{dec: dec, pool: p}, nil
}

func (p *decompressPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if p.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
	}
	return zstd.NewReader(r, opts...)
}

// pooledDecoder adapts a pooled *zstd.Decoder to io.ReadCloser.
type pooledDecoder struct {
	dec  *zstd.Decoder
	pool *decompressPool
}

func (pd *pooledDecoder) Read(p []byte) (int, error) {
	return pd.dec.Read(p)
}

func (pd *pooledDecoder) Close() error {
	if pd.dec == nil {
		return nil
	}
	_ = pd.dec.Reset(nil) //nolint:errcheck // clearing state before pool return
	pd.pool.pool.Put(pd.dec)
	pd.dec = nil
	return nil
}
