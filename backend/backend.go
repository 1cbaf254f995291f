// Package backend defines the capability the guide core consumes. Concrete
// protocol adapters (see backend/xtream) translate their wire formats into
// the models the core indexes; the core never sees a wire shape.
package backend

import (
	"context"
	"io"

	"nexuspvr/models"
)

// RecordingFilter selects one of the backend's status-filtered recording
// queries. The reconciler issues all three and re-derives status itself.
type RecordingFilter string

const (
	FilterPending    RecordingFilter = "pending"
	FilterReady      RecordingFilter = "ready"
	FilterInProgress RecordingFilter = "in_progress"
)

// Backend is the abstract guide/recording data source.
type Backend interface {
	// Authenticate establishes or refreshes a session if the adapter needs
	// one. Adapters with stateless credentials may make this a no-op probe.
	Authenticate(ctx context.Context) error

	// Channels fetches the full channel catalog.
	Channels(ctx context.Context) ([]models.Channel, error)

	// EPGSourceID fetches the guide identifier string of a server-side EPG
	// source record referenced by a channel.
	EPGSourceID(ctx context.Context, sourceRef int64) (string, error)

	// Listings fetches the program listings for one channel.
	Listings(ctx context.Context, channelID int64) ([]models.Program, error)

	// AllListings fetches listings for many channels. A channel whose fetch
	// fails maps to an empty slice; the call as a whole still succeeds.
	AllListings(ctx context.Context, channelIDs []int64) (map[int64][]models.Program, error)

	// GuideFeed opens the backend's XMLTV guide stream. The caller owns the
	// returned reader.
	GuideFeed(ctx context.Context) (io.ReadCloser, error)

	// Recordings runs one status-filtered recording query.
	Recordings(ctx context.Context, filter RecordingFilter) ([]models.Recording, error)

	// URL accessors for the presentation layer.
	StreamURL(channelID int64) string
	RecordingURL(recordingID int64) string
	IconURL(channelID int64) string
}
