package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// openDecoder wraps r with the decompressor implied by the
// payload member's name. The returned close func releases any
// decoder state; it never closes r.
func openDecoder(
	r io.Reader, name string,
) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(name, ".xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, &Error{
				Member: name,
				Err:    fmt.Errorf("xz stream: %w", err),
			}
		}
		return xr, func() {}, nil

	case strings.HasSuffix(name, ".gz"):
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, &Error{
				Member: name,
				Err:    fmt.Errorf("gzip stream: %w", err),
			}
		}
		return gr, func() { gr.Close() }, nil

	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, &Error{
				Member: name,
				Err:    fmt.Errorf("zstd stream: %w", err),
			}
		}
		return zr.IOReadCloser(), func() { zr.Close() }, nil

	case strings.HasSuffix(name, ".tar"):
		return r, func() {}, nil

	default:
		return nil, nil, &Error{
			Member: name,
			Err:    fmt.Errorf("unrecognized payload format"),
		}
	}
}
