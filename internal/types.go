package castkeep

import "time"

// EmbedKind classifies what an embed URL points at.
type EmbedKind string

const (
	// EmbedImage is a static image embed.
	EmbedImage EmbedKind = "image"
	// EmbedVideo is a video embed.
	EmbedVideo EmbedKind = "video"
	// EmbedGif is an animated GIF embed.
	EmbedGif EmbedKind = "gif"
	// EmbedFrame is an interactive frame embed.
	EmbedFrame EmbedKind = "frame"
	// EmbedLink is any other external link.
	EmbedLink EmbedKind = "link"
)

// Engagement holds the public counters of a post at fetch time.
type Engagement struct {
	Likes    int `json:"likes"`
	Reshares int `json:"reshares"`
	Replies  int `json:"replies"`
}

// Post is a single cast as fetched from the hub. It is the seed for all
// downstream preservation and is treated as read-only after fetch.
type Post struct {
	ID           string     `json:"id"`
	AuthorID     string     `json:"author_id"`
	AuthorHandle string     `json:"author_handle"`
	Text         string     `json:"text"`
	Timestamp    time.Time  `json:"timestamp"`
	Engagement   Engagement `json:"engagement"`
	Embeds       []Embed    `json:"embeds"`
}

// Embed is a URL or interactive element attached to a post. PreservedMedia
// and Frame are populated independently by different facets and either may
// be absent even when Kind suggests otherwise.
type Embed struct {
	URL            string            `json:"url"`
	Kind           EmbedKind         `json:"kind"`
	PreservedMedia *PreservedMedia   `json:"preserved_media,omitempty"`
	Frame          *FrameData        `json:"frame,omitempty"`
	OGMetadata     map[string]string `json:"og_metadata,omitempty"`
}

// StorageRef addresses stored bytes in one or two backends. At least one
// field must be non-empty for a record to count as preserved.
type StorageRef struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
}

// IsZero reports whether neither backend holds a reference.
func (r StorageRef) IsZero() bool {
	return r.Primary == "" && r.Secondary == ""
}

// Dimensions holds pixel dimensions for image and video media.
type Dimensions struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

// PreservedMedia is the durable record of one stored media file.
type PreservedMedia struct {
	OriginalURL string      `json:"original_url"`
	Ref         StorageRef  `json:"storage_ref"`
	ContentType string      `json:"content_type"`
	SizeBytes   int64       `json:"size_bytes"`
	Dimensions  *Dimensions `json:"dimensions,omitempty"`
	PreservedAt time.Time   `json:"preserved_at"`
}

// PostRef is a lightweight reference to a post inside thread data.
type PostRef struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Handle    string    `json:"handle"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ReplyRef is one reply in a conversation, ordered by arrival.
type ReplyRef struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Handle    string    `json:"handle"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Depth     int       `json:"depth"`
}

// Participant is one distinct author in a reply chain.
type Participant struct {
	AuthorID   string `json:"author_id"`
	Handle     string `json:"handle"`
	ReplyCount int    `json:"reply_count"`
}

// ThreadData is the reconstructed conversation around a post. Participants
// are derived by aggregating the reply chain by author, in order of first
// appearance.
type ThreadData struct {
	ThreadID     string        `json:"thread_id"`
	Root         *PostRef      `json:"root_post,omitempty"`
	ReplyChain   []ReplyRef    `json:"reply_chain"`
	Participants []Participant `json:"participants"`
}

// ParentRef references the post being replied to. Preserved starts false
// and stays false until a separate pass preserves the parent itself.
type ParentRef struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Handle    string    `json:"handle"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Preserved bool      `json:"preserved"`
}

// Profile is a social profile mentioned by or participating in a post.
type Profile struct {
	ID            string `json:"id"`
	Handle        string `json:"handle"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Bio           string `json:"bio,omitempty"`
	FollowerCount int    `json:"follower_count"`
}

// MaxFrameButtons is the most buttons a frame may carry.
const MaxFrameButtons = 4

// FrameButton is one action button on a frame, numbered 1-4.
type FrameButton struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

// FrameData is the captured state of an interactive frame embed.
type FrameData struct {
	FrameURL       string          `json:"frame_url"`
	Title          string          `json:"title"`
	Image          string          `json:"image"`
	PreservedImage *PreservedMedia `json:"preserved_image,omitempty"`
	Buttons        []FrameButton   `json:"buttons"`
	InputText      string          `json:"input_text,omitempty"`
	State          string          `json:"state,omitempty"`
	PostURL        string          `json:"post_url,omitempty"`
	Version        string          `json:"version"`
}

// Verification carries the tamper-evidence digest of an artifact.
type Verification struct {
	ContentHash string    `json:"content_hash"`
	ComputedAt  time.Time `json:"computed_at"`
}

// Completeness records which preservation facets actually produced data.
// A true flag must never coexist with an empty corresponding field.
type Completeness struct {
	Text     bool `json:"text"`
	Media    bool `json:"media"`
	Thread   bool `json:"thread"`
	Frames   bool `json:"frames"`
	Profiles bool `json:"profiles"`
}

// ArtifactRefs holds the storage pointers returned when an artifact is
// persisted. Either may be empty if the storage collaborator failed.
type ArtifactRefs struct {
	PrimaryRef   string `json:"primary_ref,omitempty"`
	SecondaryRef string `json:"secondary_ref,omitempty"`
}

// BackupArtifact is the composite, durable result of one backup request.
// It is created once, mutated only during its own construction, and
// persisted exactly once; refreshes create a new artifact.
type BackupArtifact struct {
	PreservationID    string       `json:"preservation_id"`
	Post              Post         `json:"post"`
	Thread            *ThreadData  `json:"thread,omitempty"`
	Parent            *ParentRef   `json:"parent,omitempty"`
	MentionedProfiles []Profile    `json:"mentioned_profiles"`
	Frames            []FrameData  `json:"frames"`
	Verification      Verification `json:"verification"`
	Completeness      Completeness `json:"completeness"`
	Storage           ArtifactRefs `json:"storage"`
	CreatedAt         time.Time    `json:"created_at"`
}

// CostEstimate is the affordability verdict produced before expensive work.
type CostEstimate struct {
	MediaCostUSD   float64  `json:"media_cost_usd"`
	StorageCostUSD float64  `json:"storage_cost_usd"`
	TotalUSD       float64  `json:"total_usd"`
	CreditsNeeded  int64    `json:"credits_needed"`
	Affordable     bool     `json:"affordable"`
	BalanceUSD     *float64 `json:"balance_usd,omitempty"`
}
