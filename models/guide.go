package models

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"
)

// FlexID decodes a backend identifier that may arrive as a JSON number, a
// numeric string, or an arbitrary string. Everything is normalized to one
// integer id at the decode boundary; non-numeric strings are reduced to a
// stable hash so repeated fetches yield the same id.
type FlexID int64

func (f *FlexID) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexID(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("id is neither number nor string: %s", data)
	}
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexID(n)
		return nil
	}
	*f = FlexID(HashID(s))
	return nil
}

func (f FlexID) Int64() int64 { return int64(f) }

// HashID derives a stable non-negative integer id from a source string.
func HashID(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// ProgramID derives an id for a program whose source carries none, from the
// feed channel string and the program's time window.
func ProgramID(channelExt string, start, stop int64) int64 {
	return HashID(fmt.Sprintf("%s|%d|%d", channelExt, start, stop))
}

// Channel is one entry of the reconciled channel catalog. The whole set is
// replaced on every channel-list refresh.
type Channel struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Number  int    `json:"number"`
	HasIcon bool   `json:"hasIcon"`
	GroupID int64  `json:"groupId,omitempty"`

	LogoURL   string `json:"logoUrl,omitempty"`
	StreamURL string `json:"streamUrl,omitempty"`

	// TvgID is the channel's own broadcast-guide identifier, when the
	// backend supplies one.
	TvgID string `json:"tvgId,omitempty"`
	// EPGSourceRef points at a server-side EPG source record whose own
	// identifier may differ from TvgID. 0 means none.
	EPGSourceRef int64 `json:"epgSourceId,omitempty"`
	// LogoID is the backend's icon asset id, when icons are served by id
	// rather than URL.
	LogoID int64 `json:"logoId,omitempty"`
}

// Program is one guide entry. Start and End are epoch seconds; End > Start
// always holds for programs in the index (violators are dropped at ingestion).
type Program struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Subtitle    string   `json:"subtitle,omitempty"`
	Description string   `json:"description,omitempty"`
	Start       int64    `json:"start"`
	End         int64    `json:"end"`
	Genres      []string `json:"genres,omitempty"`
	ChannelID   int64    `json:"channelId"`

	// ChannelExt is the feed's channel string, carried only until the
	// program is resolved to a ChannelID. Unresolvable programs are
	// discarded rather than indexed as orphans.
	ChannelExt string `json:"-"`
}

// Airing reports whether the program has not yet ended at the given instant.
func (p Program) Airing(now time.Time) bool {
	return p.End > now.Unix()
}

// DayKey returns the UTC calendar-day key used by the loaded-days set.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DayBounds returns the [start, end) epoch-second window of t's UTC day.
func DayBounds(t time.Time) (int64, int64) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start.Unix(), start.Add(24 * time.Hour).Unix()
}
