package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakePDF = []byte("%PDF-1.4 body bytes used across downloader tests")

// newTestDownloader allows private networks because httptest binds to loopback.
func newTestDownloader(cfg Config) *Downloader {
	cfg.AllowPrivateNetworks = true
	return NewDownloader(cfg)
}

// pdfServer serves the given bytes as application/pdf.
func pdfServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewDownloader(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		d := NewDownloader(Config{})

		require.NotNil(t, d)
		assert.Equal(t, int64(100*1024*1024), d.maxSize)
		assert.Equal(t, "Helixir-PaperSearch/1.0", d.userAgent)
		assert.Equal(t, 60*time.Second, d.client.Timeout)
	})

	t.Run("explicit config wins", func(t *testing.T) {
		d := NewDownloader(Config{
			Timeout:   30 * time.Second,
			MaxSize:   50 * 1024 * 1024,
			UserAgent: "CustomAgent/2.0",
		})

		require.NotNil(t, d)
		assert.Equal(t, int64(50*1024*1024), d.maxSize)
		assert.Equal(t, "CustomAgent/2.0", d.userAgent)
		assert.Equal(t, 30*time.Second, d.client.Timeout)
	})
}

func TestDownload(t *testing.T) {
	t.Run("returns content with hash", func(t *testing.T) {
		srv := pdfServer(t, fakePDF)
		d := newTestDownloader(Config{})

		result, err := d.Download(context.Background(), srv.URL)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, fakePDF, result.Content)
		assert.Equal(t, int64(len(fakePDF)), result.SizeBytes)
		assert.Equal(t, "application/pdf", result.ContentType)

		want := sha256.Sum256(fakePDF)
		assert.Equal(t, hex.EncodeToString(want[:]), result.ContentHash)
	})

	t.Run("empty body is valid", func(t *testing.T) {
		srv := pdfServer(t, nil)
		d := newTestDownloader(Config{})

		result, err := d.Download(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Empty(t, result.Content)
		assert.Equal(t, int64(0), result.SizeBytes)
		assert.Len(t, result.ContentHash, 64)
	})

	t.Run("sends default user agent", func(t *testing.T) {
		var got string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(fakePDF)
		}))
		t.Cleanup(srv.Close)

		_, err := newTestDownloader(Config{}).Download(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "Helixir-PaperSearch/1.0", got)

		_, err = newTestDownloader(Config{UserAgent: "CustomBot/3.0"}).Download(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "CustomBot/3.0", got)
	})
}

func TestDownload_ContentType(t *testing.T) {
	t.Run("rejects non-PDF responses", func(t *testing.T) {
		for _, ct := range []string{"text/html", "text/plain", "application/json", "image/png", ""} {
			t.Run("ct="+ct, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if ct != "" {
						w.Header().Set("Content-Type", ct)
					}
					_, _ = w.Write([]byte("<html>not a pdf</html>"))
				}))
				t.Cleanup(srv.Close)

				result, err := newTestDownloader(Config{}).Download(context.Background(), srv.URL)
				assert.Nil(t, result)
				require.ErrorIs(t, err, ErrNotPDF)
				assert.Contains(t, err.Error(), "Content-Type")
			})
		}
	})

	t.Run("accepts parameters and mixed case", func(t *testing.T) {
		for _, ct := range []string{
			"application/pdf; charset=utf-8",
			"application/pdf; boundary=frame",
			"Application/PDF",
			"Application/Pdf; Charset=UTF-8",
		} {
			t.Run("ct="+ct, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", ct)
					_, _ = w.Write(fakePDF)
				}))
				t.Cleanup(srv.Close)

				result, err := newTestDownloader(Config{}).Download(context.Background(), srv.URL)
				require.NoError(t, err)
				assert.Equal(t, fakePDF, result.Content)
				assert.Equal(t, ct, result.ContentType)
			})
		}
	})
}

func TestDownload_SizeLimit(t *testing.T) {
	body := make([]byte, 1024)

	t.Run("over the cap fails", func(t *testing.T) {
		srv := pdfServer(t, body)
		d := newTestDownloader(Config{MaxSize: 512})

		result, err := d.Download(context.Background(), srv.URL)
		assert.Nil(t, result)
		require.ErrorIs(t, err, ErrTooLarge)
		assert.Contains(t, err.Error(), "exceeded")
		assert.Contains(t, err.Error(), "512")
	})

	t.Run("exactly the cap succeeds", func(t *testing.T) {
		srv := pdfServer(t, body[:512])
		d := newTestDownloader(Config{MaxSize: 512})

		result, err := d.Download(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, int64(512), result.SizeBytes)
	})
}

func TestDownload_HTTPErrors(t *testing.T) {
	for _, code := range []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
	} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/pdf")
				w.WriteHeader(code)
			}))
			t.Cleanup(srv.Close)

			result, err := newTestDownloader(Config{}).Download(context.Background(), srv.URL)
			assert.Nil(t, result)
			require.ErrorIs(t, err, ErrDownloadFailed)
			assert.Contains(t, err.Error(), "HTTP")
		})
	}

	t.Run("includes status in message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		t.Cleanup(srv.Close)

		_, err := newTestDownloader(Config{}).Download(context.Background(), srv.URL)
		require.ErrorIs(t, err, ErrDownloadFailed)
		assert.Contains(t, err.Error(), "HTTP 404")
	})
}

func TestDownload_Redirects(t *testing.T) {
	final := pdfServer(t, fakePDF)

	hop2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	t.Cleanup(hop2.Close)

	hop1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, hop2.URL, http.StatusMovedPermanently)
	}))
	t.Cleanup(hop1.Close)

	result, err := newTestDownloader(Config{}).Download(context.Background(), hop1.URL)
	require.NoError(t, err)
	assert.Equal(t, fakePDF, result.Content)
	assert.Equal(t, "application/pdf", result.ContentType)
}

func TestDownload_PrivateNetworkBlocked(t *testing.T) {
	t.Run("loopback target", func(t *testing.T) {
		srv := pdfServer(t, fakePDF)
		d := NewDownloader(Config{})

		result, err := d.Download(context.Background(), srv.URL)
		assert.Nil(t, result)
		require.ErrorIs(t, err, ErrSSRF)
	})

	t.Run("non-http scheme", func(t *testing.T) {
		d := NewDownloader(Config{})

		_, err := d.Download(context.Background(), "file:///etc/passwd")
		require.ErrorIs(t, err, ErrSSRF)
	})

	t.Run("redirect onto loopback", func(t *testing.T) {
		// The redirect hop check is exercised directly since a public
		// origin is not reachable in tests.
		d := NewDownloader(Config{})
		req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8080/paper.pdf", nil)
		err := d.client.CheckRedirect(req, nil)
		require.ErrorIs(t, err, ErrSSRF)
	})
}

func TestDownload_Cancellation(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(fakePDF)
	}))
	t.Cleanup(slow.Close)

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		result, err := newTestDownloader(Config{}).Download(ctx, slow.URL)
		assert.Nil(t, result)
		require.ErrorIs(t, err, ErrDownloadFailed)
		assert.Contains(t, err.Error(), "context canceled")
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		result, err := newTestDownloader(Config{}).Download(ctx, slow.URL)
		assert.Nil(t, result)
		require.ErrorIs(t, err, ErrDownloadFailed)
	})
}

func TestDownload_Unreachable(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		d := newTestDownloader(Config{Timeout: time.Second})

		result, err := d.Download(context.Background(), "http://127.0.0.1:59999/paper.pdf")
		assert.Nil(t, result)
		require.ErrorIs(t, err, ErrDownloadFailed)
	})

	t.Run("unusable URLs", func(t *testing.T) {
		d := newTestDownloader(Config{})
		for _, raw := range []string{"", "not-a-url", "http://"} {
			result, err := d.Download(context.Background(), raw)
			assert.Nil(t, result)
			require.ErrorIs(t, err, ErrDownloadFailed, "url %q", raw)
		}
	})
}
