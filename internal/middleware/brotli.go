package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

type BrotliConfig struct {
	Quality   int
	Skipper   func(c *gin.Context) bool
	MinLength int
}

var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
	Skipper:   nil,
}

// brotliWriter buffers the body until it is long enough to be worth
// compressing. Short bodies go out untouched when the handler returns.
type brotliWriter struct {
	gin.ResponseWriter
	quality     int
	minLength   int
	buf         bytes.Buffer
	writer      *brotli.Writer
	passthrough bool
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	switch {
	case bw.writer != nil:
		return bw.writer.Write(data)
	case bw.passthrough:
		return bw.ResponseWriter.Write(data)
	}

	bw.buf.Write(data)
	if bw.buf.Len() < bw.minLength {
		return len(data), nil
	}

	h := bw.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	bw.writer = brotli.NewWriterLevel(bw.ResponseWriter, bw.quality)
	if _, err := bw.writer.Write(bw.buf.Bytes()); err != nil {
		return 0, err
	}
	bw.buf.Reset()
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Flush pushes out whatever is buffered. An uncompressed response stays
// uncompressed from here on.
func (bw *brotliWriter) Flush() {
	if bw.writer != nil {
		_ = bw.writer.Flush()
	} else {
		bw.passthrough = true
		if bw.buf.Len() > 0 {
			_, _ = bw.ResponseWriter.Write(bw.buf.Bytes())
			bw.buf.Reset()
		}
	}
	bw.ResponseWriter.Flush()
}

func (bw *brotliWriter) finish() error {
	if bw.writer != nil {
		return bw.writer.Close()
	}
	if bw.buf.Len() == 0 {
		return nil
	}
	_, err := bw.ResponseWriter.Write(bw.buf.Bytes())
	bw.buf.Reset()
	return err
}

func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		if shouldSkip(c) || (cfg.Skipper != nil && cfg.Skipper(c)) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			quality:        cfg.Quality,
			minLength:      cfg.MinLength,
		}
		c.Writer = bw

		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
			c.Writer = bw.ResponseWriter
		}()

		c.Next()
	}
}

// shouldSkip returns true for requests whose responses must stream or be
// hijacked untouched.
func shouldSkip(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	// The Upgrade handshake fails if the response is wrapped or buffered.
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return true
	}
	return false
}

func acceptsBrotli(r *http.Request) bool {
	ae := r.Header.Get("Accept-Encoding")
	for _, enc := range strings.Split(ae, ",") {
		// Ignore quality values such as "br;q=0.8".
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
