package castkeep

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/castkeep/castkeep/pkg/ratelimiter"
)

var (
	// HubURL is the base URL for the hub API.
	HubURL = "https://hub.castkeep.io/v1"
	// Pacing is the minimum delay between hub requests to avoid
	// rate-limiting. Zero disables pacing.
	Pacing = 300 * time.Millisecond
	// Debug enables verbose logging of raw hub responses.
	Debug = false

	requestSync = &sync.Mutex{}
	limiter     *ratelimiter.RateLimiter
)

// InitRateLimiter installs a global first-token rate limiter paced at
// Pacing. When installed it replaces the sleep-based pacing in Raw.
func InitRateLimiter(ctx context.Context) {
	if Pacing > 0 {
		limiter = ratelimiter.New(Pacing, ctx)
	}
}

// StopRateLimiter releases the global rate limiter.
func StopRateLimiter() {
	if limiter != nil {
		limiter.Stop()
		limiter = nil
	}
}

// HubClient talks to the hub API and to frame pages. It implements the
// cast source, social graph source and frame fetcher collaborators.
type HubClient struct {
	baseURL string
	http    *http.Client
}

// Hub returns a hub client for baseURL. An empty baseURL uses HubURL, a
// nil client uses a 30s-timeout default.
func Hub(baseURL string, httpClient *http.Client) *HubClient {
	if baseURL == "" {
		baseURL = HubURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HubClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Raw executes a raw GET against a hub method and returns the body bytes.
func (c *HubClient) Raw(ctx context.Context, method string, query map[string]string) ([]byte, error) {
	if limiter != nil {
		if err := limiter.Wait(); err != nil {
			return nil, err
		}
	} else if Pacing != 0 {
		requestSync.Lock()
		defer unlock()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+method, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	for key, val := range query {
		q.Add(key, val)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hub error: %s [%s]", resp.Status, method)
	}
	buffer, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if Debug {
		fmt.Println(string(buffer))
	}
	return buffer, nil
}

// rawParsed executes a raw request and decodes the hub envelope.
func rawParsed[T any](ctx context.Context, c *HubClient, method string, query map[string]string) (*T, error) {
	data, err := c.Raw(ctx, method, query)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data *T     `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("hub error: %s (%d) [%s]", resp.Msg, resp.Code, method)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("hub returned empty data [%s]", method)
	}
	return resp.Data, nil
}

// Fetch retrieves a single cast and converts it at the boundary. A failure
// here is the one fatal condition of a backup, so the sentinel is wrapped
// in for callers to test with errors.Is.
func (c *HubClient) Fetch(ctx context.Context, castID string) (*Post, error) {
	raw, err := rawParsed[RawCast](ctx, c, "cast", map[string]string{"hash": castID})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCastUnavailable, castID, err)
	}
	return PostFromRaw(raw), nil
}

// Thread retrieves the conversation page for a cast.
func (c *HubClient) Thread(ctx context.Context, castID string) (*RawThread, error) {
	return rawParsed[RawThread](ctx, c, "thread", map[string]string{"hash": castID})
}

// Context retrieves the reply-context record for a cast.
func (c *HubClient) Context(ctx context.Context, castID string) (*RawContext, error) {
	return rawParsed[RawContext](ctx, c, "cast/context", map[string]string{"hash": castID})
}

// Profiles retrieves profiles for a set of author ids.
func (c *HubClient) Profiles(ctx context.Context, fids []string) ([]RawProfile, error) {
	if len(fids) == 0 {
		return nil, nil
	}
	parsed, err := rawParsed[[]RawProfile](ctx, c, "profiles", map[string]string{"fids": strings.Join(fids, ",")})
	if err != nil {
		return nil, err
	}
	return *parsed, nil
}

var frameMetaRe = regexp.MustCompile(`<meta[^>]+(?:property|name)=["']((?:fc:frame|og:title)[^"']*)["'][^>]+content=["']([^"']*)["']`)
var frameMetaFlippedRe = regexp.MustCompile(`<meta[^>]+content=["']([^"']*)["'][^>]+(?:property|name)=["']((?:fc:frame|og:title)[^"']*)["']`)

// FetchFrame fetches a URL and extracts its frame meta tags into an
// explicit record. The fetch, not the URL shape, decides whether the page
// really is a frame: a page without a frame version tag yields meta with
// an empty Version.
func (c *HubClient) FetchFrame(ctx context.Context, frameURL string) (*RawFrameMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, frameURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("frame fetch: %s [%s]", resp.Status, frameURL)
	}
	// Frame tags live in <head>; 256KiB is far beyond any sane head.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		return nil, err
	}
	return parseFrameMeta(string(body)), nil
}

// parseFrameMeta groups fc:frame meta tags into a RawFrameMeta.
func parseFrameMeta(html string) *RawFrameMeta {
	meta := &RawFrameMeta{}
	apply := func(property, content string) {
		switch property {
		case "fc:frame":
			meta.Version = content
		case "fc:frame:image":
			meta.Image = content
		case "og:title":
			meta.Title = content
		case "fc:frame:post_url":
			meta.PostURL = content
		case "fc:frame:input:text":
			meta.InputText = content
		case "fc:frame:state":
			meta.State = content
		default:
			const buttonPrefix = "fc:frame:button:"
			if !strings.HasPrefix(property, buttonPrefix) {
				return
			}
			parts := strings.SplitN(strings.TrimPrefix(property, buttonPrefix), ":", 2)
			idx, err := strconv.Atoi(parts[0])
			if err != nil || idx < 1 || idx > MaxFrameButtons {
				return
			}
			button := &meta.Buttons[idx-1]
			if len(parts) == 1 {
				button.Title = content
				return
			}
			switch parts[1] {
			case "action":
				button.Action = content
			case "target":
				button.Target = content
			}
		}
	}
	for _, m := range frameMetaRe.FindAllStringSubmatch(html, -1) {
		apply(m[1], m[2])
	}
	for _, m := range frameMetaFlippedRe.FindAllStringSubmatch(html, -1) {
		apply(m[2], m[1])
	}
	return meta
}

func unlock() {
	time.Sleep(Pacing)
	requestSync.Unlock()
}
