package music

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ritmatiza/core"
)

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "PENDING"
	SuggestionApproved SuggestionStatus = "APPROVED"
	SuggestionRejected SuggestionStatus = "REJECTED"
)

type PlaybackStatus string

const (
	PlaybackPending PlaybackStatus = "PENDING"
	PlaybackPlayed  PlaybackStatus = "PLAYED"
	PlaybackSkipped PlaybackStatus = "SKIPPED"
)

const (
	// SuggestionCost is debited from the requester when a suggestion is approved.
	SuggestionCost = 50

	SearchPageSize = 9
	MinQueryLength = 3

	trackURIPrefix = "spotify:track:"
)

// TrackURI returns the playlist URI of a track id.
func TrackURI(trackID string) string { return trackURIPrefix + trackID }

type Suggestion struct {
	ID          int              `json:"id"`
	TrackID     string           `json:"track_id"`
	Title       string           `json:"title"`
	Artist      string           `json:"artist"`
	RequestedBy int              `json:"requested_by"`
	Status      SuggestionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"` // UTC
	UpdatedAt   time.Time        `json:"updated_at"` // UTC
}

type PlaylistEntry struct {
	ID             int            `json:"id"`
	TrackID        string         `json:"track_id"`
	Title          string         `json:"title"`
	Artist         string         `json:"artist"`
	AddedBy        int            `json:"added_by"`
	PlaybackStatus PlaybackStatus `json:"playback_status"`
	CreatedAt      time.Time      `json:"created_at"` // UTC
	UpdatedAt      time.Time      `json:"updated_at"` // UTC
}

// Track is a search result of the music provider.
type Track struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	AlbumName   string   `json:"album_name"`
	CoverURL    string   `json:"cover_url"`
	URI         string   `json:"uri"`
	ExternalURL string   `json:"external_url"`
}

type NewSuggestion struct {
	TrackID string `json:"track_id" validate:"required,max=100,trackid"`
	Title   string `json:"title" validate:"required,max=255"`
	Artist  string `json:"artist" validate:"required,max=255"`
}

func (ns *NewSuggestion) Validate(validate *validator.Validate) error {
	ns.TrackID = core.CleanString(ns.TrackID)
	ns.Title = core.CleanString(ns.Title)
	ns.Artist = core.CleanString(ns.Artist)
	return validate.Struct(ns)
}

type SuggestionFilter struct {
	Status      SuggestionStatus
	RequestedBy *int
}

type PlaylistFilter struct {
	PlaybackStatus PlaybackStatus
}

// Token is the result of an authorization-code exchange or a refresh.
// RefreshToken is empty when the provider kept the previous one.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
}

type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"`
}
