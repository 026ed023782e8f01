package castkeep

import (
	"sort"
	"strings"
	"time"
)

// Raw wire shapes returned by the hub API. They are converted to the
// internal data model in one validated step at the boundary; nothing
// downstream sees them.

// RawCast is a post as the hub serves it.
type RawCast struct {
	Hash      string     `json:"hash"`
	Author    RawProfile `json:"author"`
	Text      string     `json:"text"`
	Timestamp int64      `json:"timestamp"`
	Reactions struct {
		LikesCount   int `json:"likes_count"`
		RecastsCount int `json:"recasts_count"`
		RepliesCount int `json:"replies_count"`
	} `json:"reactions"`
	Embeds []struct {
		URL string `json:"url"`
	} `json:"embeds"`
	MentionedFids []string `json:"mentioned_fids"`
}

// RawProfile is a user profile as the hub serves it.
type RawProfile struct {
	Fid           string `json:"fid"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	PfpURL        string `json:"pfp_url"`
	Bio           string `json:"bio"`
	FollowerCount int    `json:"follower_count"`
}

// RawReply is one conversation reply as the hub serves it.
type RawReply struct {
	Hash      string `json:"hash"`
	Fid       string `json:"fid"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Depth     int    `json:"depth"`
}

// RawThread is a conversation page as the hub serves it.
type RawThread struct {
	ThreadHash string     `json:"thread_hash"`
	Root       *RawCast   `json:"root"`
	Replies    []RawReply `json:"replies"`
}

// RawContext is the reply-context record for a cast: the cast itself plus
// its immediate parent, if any.
type RawContext struct {
	Cast   *RawCast `json:"cast"`
	Parent *RawCast `json:"parent"`
}

// RawFrameButton is one parsed frame button tag group.
type RawFrameButton struct {
	Title  string `json:"title"`
	Action string `json:"action"`
	Target string `json:"target"`
}

// RawFrameMeta is the tag soup of a fetched frame page, already grouped
// into explicit fields. Button slots without any tags stay zero.
type RawFrameMeta struct {
	Version   string                          `json:"version"`
	Image     string                          `json:"image"`
	Title     string                          `json:"title"`
	PostURL   string                          `json:"post_url"`
	InputText string                          `json:"input_text"`
	State     string                          `json:"state"`
	Buttons   [MaxFrameButtons]RawFrameButton `json:"buttons"`
}

// PostFromRaw converts a hub cast into the internal model, classifying
// every embed as it goes.
func PostFromRaw(raw *RawCast) *Post {
	post := &Post{
		ID:           raw.Hash,
		AuthorID:     raw.Author.Fid,
		AuthorHandle: raw.Author.Username,
		Text:         raw.Text,
		Timestamp:    time.Unix(raw.Timestamp, 0).UTC(),
		Engagement: Engagement{
			Likes:    raw.Reactions.LikesCount,
			Reshares: raw.Reactions.RecastsCount,
			Replies:  raw.Reactions.RepliesCount,
		},
	}
	for _, e := range raw.Embeds {
		url := strings.TrimSpace(e.URL)
		if url == "" {
			continue
		}
		post.Embeds = append(post.Embeds, Embed{URL: url, Kind: ClassifyURL(url)})
	}
	return post
}

// ThreadFromRaw converts a hub conversation into ThreadData, deriving the
// participant roster from the reply chain in first-appearance order.
func ThreadFromRaw(raw *RawThread) *ThreadData {
	thread := &ThreadData{ThreadID: raw.ThreadHash}
	if raw.Root != nil {
		thread.Root = &PostRef{
			ID:        raw.Root.Hash,
			AuthorID:  raw.Root.Author.Fid,
			Handle:    raw.Root.Author.Username,
			Text:      raw.Root.Text,
			Timestamp: time.Unix(raw.Root.Timestamp, 0).UTC(),
		}
	}
	seen := make(map[string]int)
	for _, r := range raw.Replies {
		thread.ReplyChain = append(thread.ReplyChain, ReplyRef{
			ID:        r.Hash,
			AuthorID:  r.Fid,
			Handle:    r.Username,
			Text:      r.Text,
			Timestamp: time.Unix(r.Timestamp, 0).UTC(),
			Depth:     r.Depth,
		})
		if idx, ok := seen[r.Fid]; ok {
			thread.Participants[idx].ReplyCount++
			continue
		}
		seen[r.Fid] = len(thread.Participants)
		thread.Participants = append(thread.Participants, Participant{
			AuthorID:   r.Fid,
			Handle:     r.Username,
			ReplyCount: 1,
		})
	}
	return thread
}

// ParentFromRaw converts a hub parent cast into a ParentRef. Preserved is
// always false here; a later pass flips it once the parent itself has been
// backed up.
func ParentFromRaw(raw *RawCast) *ParentRef {
	return &ParentRef{
		ID:        raw.Hash,
		AuthorID:  raw.Author.Fid,
		Handle:    raw.Author.Username,
		Text:      raw.Text,
		Timestamp: time.Unix(raw.Timestamp, 0).UTC(),
		Preserved: false,
	}
}

// ProfileFromRaw converts a hub profile into the internal model.
func ProfileFromRaw(raw RawProfile) Profile {
	return Profile{
		ID:            raw.Fid,
		Handle:        raw.Username,
		DisplayName:   raw.DisplayName,
		AvatarURL:     raw.PfpURL,
		Bio:           raw.Bio,
		FollowerCount: raw.FollowerCount,
	}
}

// MentionedFids returns the de-duplicated mentioned author ids of a raw
// context, sorted for stable request shapes.
func MentionedFids(raw *RawContext) []string {
	if raw == nil || raw.Cast == nil {
		return nil
	}
	set := make(map[string]struct{}, len(raw.Cast.MentionedFids))
	for _, fid := range raw.Cast.MentionedFids {
		if fid != "" {
			set[fid] = struct{}{}
		}
	}
	fids := make([]string, 0, len(set))
	for fid := range set {
		fids = append(fids, fid)
	}
	sort.Strings(fids)
	return fids
}
