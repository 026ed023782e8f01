package preserve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/cavaliergopher/grab/v3"

	castkeep "github.com/castkeep/castkeep/internal"
	"github.com/castkeep/castkeep/pkg/metrics"
)

// FetchFunc downloads a URL and returns its bytes and content type.
type FetchFunc func(ctx context.Context, url string) (data []byte, contentType string, err error)

// DefaultDownloadClient is the default HTTP client for downloading media.
var DefaultDownloadClient = &grab.Client{
	HTTPClient: &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
		},
		Timeout: time.Minute * 5,
	},
	UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.1",
}

// Options configures a Preserver.
type Options struct {
	Fetch     FetchFunc // Downloads one URL. Defaults to a grab-backed fetch.
	BatchSize int       // Concurrent downloads per batch.
	Retries   int       // Fetch attempts per URL.
}

// Defaults sets default values for the Options.
func (opt *Options) Defaults() *Options {
	ret := opt
	if ret == nil {
		ret = &Options{}
	}
	if ret.Fetch == nil {
		ret.Fetch = grabFetch
	}
	if ret.BatchSize <= 0 {
		ret.BatchSize = 3
	}
	if ret.Retries <= 0 {
		ret.Retries = 2
	}
	return ret
}

// grabFetch downloads url to a temp file, reads it back and cleans up.
func grabFetch(ctx context.Context, url string) ([]byte, string, error) {
	dir, err := os.MkdirTemp("", "castkeep-dl-*")
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	req, err := grab.NewRequest(filepath.Join(dir, "blob"), url)
	if err != nil {
		return nil, "", err
	}
	req = req.WithContext(ctx)
	resp := DefaultDownloadClient.Do(req)
	if err := resp.Err(); err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(resp.Filename)
	if err != nil {
		return nil, "", err
	}
	contentType := ""
	if resp.HTTPResponse != nil {
		contentType = resp.HTTPResponse.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// Preserver downloads media embeds and hands the bytes to a ByteStore.
// Concurrent requests for the same URL are coalesced into one download and
// one store, whichever post they came from.
type Preserver struct {
	store   ByteStore
	opt     *Options
	flights Flight[castkeep.PreservedMedia]
}

// New creates a Preserver backed by store.
func New(store ByteStore, opt *Options) *Preserver {
	return &Preserver{store: store, opt: opt.Defaults()}
}

// Preserve downloads and stores one URL. A blank URL resolves to nil
// without any I/O. Identical concurrent URLs share a single attempt.
func (p *Preserver) Preserve(ctx context.Context, url string) (*castkeep.PreservedMedia, error) {
	if url == "" {
		return nil, nil
	}
	media, coalesced, err := p.flights.Do(url, func() (*castkeep.PreservedMedia, error) {
		return p.preserveOne(ctx, url)
	})
	if coalesced {
		metrics.MediaCoalesced.Inc()
	}
	return media, err
}

func (p *Preserver) preserveOne(ctx context.Context, url string) (*castkeep.PreservedMedia, error) {
	var data []byte
	var contentType string
	var err error
	for attempt := 0; attempt < p.opt.Retries; attempt++ {
		data, contentType, err = p.opt.Fetch(ctx, url)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	ref, err := p.store.Store(ctx, data, contentType)
	if err != nil {
		return nil, err
	}

	media := &castkeep.PreservedMedia{
		OriginalURL: url,
		Ref:         ref,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		PreservedAt: time.Now().UTC(),
	}
	if cfg, _, decodeErr := image.DecodeConfig(bytes.NewReader(data)); decodeErr == nil {
		media.Dimensions = &castkeep.Dimensions{Width: cfg.Width, Height: cfg.Height}
	}
	return media, nil
}

// Result pairs one input URL with its preservation outcome.
type Result struct {
	URL   string
	Media *castkeep.PreservedMedia
	Err   error
}

// PreserveMany preserves a list of URLs in batches: batches run one after
// another, URLs within a batch run concurrently. Per-URL failures are
// recorded and do not stop the run, except ErrDiskSpace which aborts the
// remaining batches. Results align with the input order.
func (p *Preserver) PreserveMany(ctx context.Context, urls []string) ([]Result, error) {
	results := make([]Result, len(urls))
	for i := range urls {
		results[i].URL = urls[i]
	}

	for start := 0; start < len(urls); start += p.opt.BatchSize {
		end := start + p.opt.BatchSize
		if end > len(urls) {
			end = len(urls)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i].Media, results[i].Err = p.Preserve(ctx, urls[i])
			}(i)
		}
		wg.Wait()

		for i := start; i < end; i++ {
			if results[i].Err != nil && isFatal(results[i].Err) {
				return results, results[i].Err
			}
		}
	}
	return results, nil
}

func isFatal(err error) bool {
	return errors.Is(err, castkeep.ErrDiskSpace)
}
