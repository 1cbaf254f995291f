package guide

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"nexuspvr/internal/parallel"
	"nexuspvr/models"
)

// streamNamespace seeds the deterministic per-channel stream session UUIDs.
var streamNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("nexuspvr/stream"))

// defaultNameMatchThreshold is the minimum share of a feed's channels that
// direct and secondary resolution must cover before the display-name
// fallback is skipped. Arbitrary but tunable via settings.
const defaultNameMatchThreshold = 0.5

// IdentifierMap relates a channel's stable integer id to the external
// identifier strings it appears under in guide data, plus per-channel logo
// ids and stream session UUIDs. It is rebuilt wholesale on every channel
// refresh and never partially mutated.
type IdentifierMap struct {
	byExtID     map[string]int64
	logoIDs     map[int64]int64
	streamUUIDs map[int64]uuid.UUID
}

func newIdentifierMap() *IdentifierMap {
	return &IdentifierMap{
		byExtID:     make(map[string]int64),
		logoIDs:     make(map[int64]int64),
		streamUUIDs: make(map[int64]uuid.UUID),
	}
}

// register claims an external identifier for a channel. The first
// registration wins; later claims on the same string are ignored.
func (m *IdentifierMap) register(extID string, channelID int64) bool {
	key := strings.ToLower(strings.TrimSpace(extID))
	if key == "" {
		return false
	}
	if _, taken := m.byExtID[key]; taken {
		return false
	}
	m.byExtID[key] = channelID
	return true
}

// ChannelFor resolves an external guide identifier to a channel id.
func (m *IdentifierMap) ChannelFor(extID string) (int64, bool) {
	id, ok := m.byExtID[strings.ToLower(strings.TrimSpace(extID))]
	return id, ok
}

// LogoID returns the backend icon asset id for a channel.
func (m *IdentifierMap) LogoID(channelID int64) (int64, bool) {
	id, ok := m.logoIDs[channelID]
	return id, ok
}

// StreamUUID returns the stream session UUID for a channel.
func (m *IdentifierMap) StreamUUID(channelID int64) (uuid.UUID, bool) {
	u, ok := m.streamUUIDs[channelID]
	return u, ok
}

// Mapped returns how many external identifiers are currently registered.
func (m *IdentifierMap) Mapped() int { return len(m.byExtID) }

// SecondaryLookup fetches the guide identifier of a server-side EPG source
// record. Matches backend.Backend.EPGSourceID.
type SecondaryLookup func(ctx context.Context, sourceRef int64) (string, error)

// BuildIdentifierMap rebuilds the identifier map for a fresh channel list.
// Stage one registers each channel's own tvg identifier. Stage two fans out
// one bounded-parallel lookup per channel referencing a secondary EPG source
// record; a fetched identifier is registered only when no earlier mapping
// claims it, and a failed lookup degrades to no mapping for that channel
// only. The display-name fallback (stage three) runs later, once a feed's
// channel table is known; see RegisterFeedChannels.
func BuildIdentifierMap(ctx context.Context, channels []models.Channel, lookup SecondaryLookup, limit int) *IdentifierMap {
	m := newIdentifierMap()

	refs := make(map[int64]int64)
	var pending []int64
	for _, ch := range channels {
		if ch.TvgID != "" {
			m.register(ch.TvgID, ch.ID)
		}
		if ch.LogoID != 0 {
			m.logoIDs[ch.ID] = ch.LogoID
		}
		m.streamUUIDs[ch.ID] = uuid.NewSHA1(streamNamespace, []byte(strconv.FormatInt(ch.ID, 10)))

		if ch.EPGSourceRef != 0 && lookup != nil {
			refs[ch.ID] = ch.EPGSourceRef
			pending = append(pending, ch.ID)
		}
	}

	if len(pending) > 0 {
		results := parallel.Map(ctx, pending, limit, func(ctx context.Context, channelID int64) (string, error) {
			return lookup(ctx, refs[channelID])
		})
		registered := 0
		for channelID, extID := range results {
			if extID == "" {
				continue
			}
			if m.register(extID, channelID) {
				registered++
			}
		}
		log.Printf("[guide] secondary identifier resolution: %d/%d channels registered", registered, len(pending))
	}

	return m
}

// RegisterFeedChannels applies the display-name fallback for one feed's
// channel table. When fewer than threshold of the feed's channels already
// resolve, remaining unmapped feed ids are matched case-insensitively
// against channel display names. Threshold <= 0 selects the default.
func (m *IdentifierMap) RegisterFeedChannels(displayNames map[string]string, channels []models.Channel, threshold float64) {
	if len(displayNames) == 0 {
		return
	}
	if threshold <= 0 {
		threshold = defaultNameMatchThreshold
	}

	resolved := 0
	for feedID := range displayNames {
		if _, ok := m.ChannelFor(feedID); ok {
			resolved++
		}
	}
	if float64(resolved) >= threshold*float64(len(displayNames)) {
		return
	}

	byName := make(map[string]int64, len(channels))
	for _, ch := range channels {
		name := strings.ToLower(strings.TrimSpace(ch.Name))
		if name == "" {
			continue
		}
		if _, taken := byName[name]; !taken {
			byName[name] = ch.ID
		}
	}

	matched := 0
	for feedID, name := range displayNames {
		if _, ok := m.ChannelFor(feedID); ok {
			continue
		}
		if channelID, ok := byName[strings.ToLower(strings.TrimSpace(name))]; ok {
			if m.register(feedID, channelID) {
				matched++
			}
		}
	}
	if matched > 0 {
		log.Printf("[guide] display-name fallback mapped %d of %d feed channels", matched, len(displayNames))
	}
}
