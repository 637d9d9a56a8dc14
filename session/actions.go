package session

import (
	"context"
	"time"
)

// PlayRequest describes one playback run of a bag through the external
// player. Token names the spawned process so a later kill can target it.
type PlayRequest struct {
	Path         string
	PublishClock bool
	Rate         float64
	Start        time.Duration
	Loop         bool
	Topics       []string
	Token        string
}

// RecordRequest describes one record run over live topics.
type RecordRequest struct {
	Topics []string
	Token  string
}

// FilterRequest describes rewriting Src into Dst keeping only Topics.
type FilterRequest struct {
	Src    string
	Dst    string
	Topics []string
}

// A Launcher executes the external process actions a session requests.
// Every call is fire and forget: a nil error means the request was issued,
// not that the process ran or exited successfully.
type Launcher interface {
	Play(ctx context.Context, req PlayRequest) error
	Record(ctx context.Context, req RecordRequest) error
	Filter(ctx context.Context, req FilterRequest) error
	Kill(ctx context.Context, token string) error
}
