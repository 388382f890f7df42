package models

import "time"

// Card associates a caller-chosen identifier with its uploaded video
// Maps to: cards table
type Card struct {
	// Opaque identifier supplied by the caller (e.g. "FAMILIA-1")
	CardID string `db:"card_id" json:"cardId"`

	// Permanent URL of the last successful upload; nil until one happens
	VideoURL *string `db:"video_url" json:"videoUrl"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// CardView is what a lookup returns, whether or not the card is stored
type CardView struct {
	CardID          string  `json:"cardId"`
	InitialVideoURL string  `json:"initialVideoUrl"`
	FinalVideoURL   *string `json:"finalVideoUrl"`

	// False when nothing is stored for the card and defaults were returned
	Registered bool `json:"registered"`
}

// UploadResult is returned after a video is stored and recorded
type UploadResult struct {
	VideoURL string `json:"videoUrl"`
}

// Content type attached to every video upload
const VideoContentType = "video/mp4"
