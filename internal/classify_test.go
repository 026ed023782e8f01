package castkeep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyURL(t *testing.T) {
	cases := []struct {
		url  string
		want EmbedKind
	}{
		{"https://imagedelivery.net/abc/pic/original", EmbedImage},
		{"https://example.com/photo.JPG", EmbedImage},
		{"https://example.com/anim.gif", EmbedGif},
		{"https://example.com/clip.mp4", EmbedVideo},
		{"https://stream.warpcast.com/v1/video/x.m3u8", EmbedVideo},
		{"https://app.example.com/frames/poll/123", EmbedFrame},
		{"https://frame.example.xyz/start", EmbedFrame},
		{"https://example.com/article", EmbedLink},
		{"", EmbedLink},
		{"not a url", EmbedLink},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyURL(tc.url), "url %q", tc.url)
	}
}

func TestLooksLikeFrame(t *testing.T) {
	assert.True(t, LooksLikeFrame("https://app.example.com/frames/vote"))
	assert.True(t, LooksLikeFrame("https://frame.degen.tips/"))
	assert.False(t, LooksLikeFrame("https://example.com/photo.jpg"))
	assert.False(t, LooksLikeFrame(""))
}

func TestMediaAndFrameURLs(t *testing.T) {
	post := &Post{Embeds: []Embed{
		{URL: "https://example.com/a.png", Kind: EmbedImage},
		{URL: "", Kind: EmbedLink},
		{URL: "https://app.example.com/frames/poll", Kind: EmbedFrame},
	}}

	assert.Equal(t, []string{"https://example.com/a.png", "https://app.example.com/frames/poll"}, MediaURLs(post))
	assert.Equal(t, []string{"https://app.example.com/frames/poll"}, FrameURLs(post))
}

func TestParseFrameMeta(t *testing.T) {
	html := `<html><head>
	<meta property="fc:frame" content="vNext" />
	<meta property="fc:frame:image" content="https://img.example.com/f.png" />
	<meta property="og:title" content="Poll" />
	<meta property="fc:frame:button:1" content="Yes" />
	<meta property="fc:frame:button:2" content="No" />
	<meta property="fc:frame:button:2:action" content="post_redirect" />
	<meta property="fc:frame:button:2:target" content="https://example.com/no" />
	<meta property="fc:frame:button:9" content="out of range" />
	<meta property="fc:frame:post_url" content="https://example.com/submit" />
	</head></html>`

	meta := parseFrameMeta(html)
	assert.Equal(t, "vNext", meta.Version)
	assert.Equal(t, "https://img.example.com/f.png", meta.Image)
	assert.Equal(t, "Poll", meta.Title)
	assert.Equal(t, "https://example.com/submit", meta.PostURL)
	assert.Equal(t, "Yes", meta.Buttons[0].Title)
	assert.Equal(t, "No", meta.Buttons[1].Title)
	assert.Equal(t, "post_redirect", meta.Buttons[1].Action)
	assert.Equal(t, "https://example.com/no", meta.Buttons[1].Target)
	assert.Empty(t, meta.Buttons[2].Title)
	assert.Empty(t, meta.Buttons[3].Title)
}

func TestThreadFromRawAggregatesParticipants(t *testing.T) {
	raw := &RawThread{
		ThreadHash: "0xroot",
		Replies: []RawReply{
			{Hash: "0x1", Fid: "fid:1", Username: "alice", Depth: 1},
			{Hash: "0x2", Fid: "fid:2", Username: "bob", Depth: 1},
			{Hash: "0x3", Fid: "fid:1", Username: "alice", Depth: 2},
		},
	}
	thread := ThreadFromRaw(raw)

	assert.Len(t, thread.ReplyChain, 3)
	// First-appearance order, not sorted by count.
	assert.Equal(t, []Participant{
		{AuthorID: "fid:1", Handle: "alice", ReplyCount: 2},
		{AuthorID: "fid:2", Handle: "bob", ReplyCount: 1},
	}, thread.Participants)
}
