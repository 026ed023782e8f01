package castkeep

import (
	"net/url"
	"path"
	"strings"
)

// Well-known hosts used by the kind heuristics. Classification is advisory
// only; it never blocks preservation.
var (
	imageHosts = []string{"imagedelivery.net", "i.imgur.com", "res.cloudinary.com", "imgur.com"}
	videoHosts = []string{"stream.warpcast.com", "customer-", "youtube.com", "youtu.be", "vimeo.com"}
)

var extensionKinds = map[string]EmbedKind{
	".jpg":  EmbedImage,
	".jpeg": EmbedImage,
	".png":  EmbedImage,
	".webp": EmbedImage,
	".avif": EmbedImage,
	".bmp":  EmbedImage,
	".gif":  EmbedGif,
	".mp4":  EmbedVideo,
	".mov":  EmbedVideo,
	".webm": EmbedVideo,
	".m3u8": EmbedVideo,
}

// ClassifyURL infers an embed kind from URL shape, extension and known-host
// heuristics. Unknown URLs classify as links.
func ClassifyURL(rawURL string) EmbedKind {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return EmbedLink
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return EmbedLink
	}

	if kind, ok := extensionKinds[strings.ToLower(path.Ext(u.Path))]; ok {
		return kind
	}
	if LooksLikeFrame(trimmed) {
		return EmbedFrame
	}

	host := strings.ToLower(u.Host)
	for _, h := range imageHosts {
		if strings.Contains(host, h) {
			return EmbedImage
		}
	}
	for _, h := range videoHosts {
		if strings.Contains(host, h) {
			return EmbedVideo
		}
	}
	return EmbedLink
}

// LooksLikeFrame reports whether a URL is worth attempting as an
// interactive frame. It is a cheap pre-filter; the fetch is the authority.
func LooksLikeFrame(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	p := strings.ToLower(u.Path)
	switch {
	case strings.Contains(p, "/frames"), strings.Contains(p, "/frame/"):
		return true
	case strings.HasSuffix(p, "/frame"):
		return true
	case strings.HasPrefix(host, "frame."), strings.Contains(host, "frames."):
		return true
	case strings.Contains(host, "frame") && u.RawQuery != "":
		return true
	}
	return false
}

// MediaURLs returns all non-blank embed URLs in embed order. Classification
// is advisory only, so every URL gets a preservation attempt.
func MediaURLs(post *Post) []string {
	urls := make([]string, 0, len(post.Embeds))
	for _, embed := range post.Embeds {
		if embed.URL == "" {
			continue
		}
		urls = append(urls, embed.URL)
	}
	return urls
}

// FrameURLs returns the embed URLs that pass the frame pre-filter.
func FrameURLs(post *Post) []string {
	var urls []string
	for _, embed := range post.Embeds {
		if embed.URL != "" && LooksLikeFrame(embed.URL) {
			urls = append(urls, embed.URL)
		}
	}
	return urls
}
