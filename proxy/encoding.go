package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var errEncodingNotSupported = errors.New("content-encoding not supported")

func contentEncoding(header http.Header) string {
	return strings.ToLower(strings.TrimSpace(header.Get("Content-Encoding")))
}

func decode(enc string, body []byte) ([]byte, error) {
	var r io.Reader
	switch enc {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		r = fr
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("%w: %s", errEncodingNotSupported, enc)
	}
	return io.ReadAll(r)
}

func encode(enc string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch enc {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		w = fw
	case "br":
		w = brotli.NewWriter(&buf)
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = zw
	default:
		return nil, fmt.Errorf("%w: %s", errEncodingNotSupported, enc)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodedBody returns the request body with its Content-Encoding removed.
func (r *Request) DecodedBody() ([]byte, error) {
	if len(r.Body) == 0 {
		return r.Body, nil
	}
	return decode(contentEncoding(r.Header), r.Body)
}

// DecodedBody returns the response body with its Content-Encoding removed.
func (r *Response) DecodedBody() ([]byte, error) {
	if len(r.Body) == 0 {
		return r.Body, nil
	}
	return decode(contentEncoding(r.Header), r.Body)
}

// ReplaceToDecodedBody replaces the body by its decoded form and drops the
// Content-Encoding header. The response is left as it was when decoding fails.
func (r *Response) ReplaceToDecodedBody() {
	body, err := r.DecodedBody()
	if err != nil {
		return
	}
	r.Body = body
	r.Header.Del("Content-Encoding")
	r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	r.Header.Del("Transfer-Encoding")
}

// ReplaceBody stores a new decoded body, compressed with the response's
// current Content-Encoding, and updates Content-Length. When the encoding
// cannot be applied the body is stored uncompressed and Content-Encoding is
// removed.
func (r *Response) ReplaceBody(decoded []byte) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	body, err := encode(contentEncoding(r.Header), decoded)
	if err != nil {
		body = decoded
		r.Header.Del("Content-Encoding")
	}
	r.Body = body
	r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	r.Header.Del("Transfer-Encoding")
}
