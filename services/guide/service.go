// Package guide owns the reconciled guide index: the channel catalog, the
// identifier map, the per-channel program lists and the set of fully loaded
// calendar days. All mutation goes through the Service's own operations.
package guide

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"nexuspvr/backend"
	"nexuspvr/models"
)

type loadState int

const (
	stateIdle loadState = iota
	stateLoading
	stateLoaded
	stateFailed
)

func (s loadState) String() string {
	switch s {
	case stateLoading:
		return "loading"
	case stateLoaded:
		return "loaded"
	case stateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Config tunes the guide service.
type Config struct {
	// LookupConcurrency caps simultaneous secondary-identifier lookups.
	// 0 selects the default of 20.
	LookupConcurrency int
	// NameMatchThreshold is the feed coverage below which display-name
	// matching kicks in. 0 selects the default of 0.5.
	NameMatchThreshold float64
}

const defaultLookupConcurrency = 20

// Service is the guide index. A Service starts empty; Load populates the
// channel catalog synchronously and fills programs in the background, and
// EnsureDay loads further guide days on demand.
type Service struct {
	lookupLimit   int
	nameThreshold float64
	now           func() time.Time

	mu           sync.RWMutex
	state        loadState
	lastError    string
	generation   uint64
	channels     []models.Channel
	channelsByID map[int64]models.Channel
	idmap        *IdentifierMap
	programs     map[int64][]models.Program
	programIDs   map[int64]map[int64]struct{}
	loadedDays   map[string]struct{}
	bgCancel     context.CancelFunc
}

// NewService creates an empty guide index.
func NewService(cfg Config) *Service {
	limit := cfg.LookupConcurrency
	if limit <= 0 {
		limit = defaultLookupConcurrency
	}
	return &Service{
		lookupLimit:   limit,
		nameThreshold: cfg.NameMatchThreshold,
		now:           time.Now,
		idmap:         newIdentifierMap(),
		channelsByID:  make(map[int64]models.Channel),
		programs:      make(map[int64][]models.Program),
		programIDs:    make(map[int64]map[int64]struct{}),
		loadedDays:    make(map[string]struct{}),
	}
}

// Load authenticates, fetches the channel catalog and rebuilds the
// identifier map, returning as soon as channels are available. The program
// fill for the current day continues in a cancellable background operation.
// A Load while another is running is a no-op; a failure during the channel
// phase surfaces to the caller and marks the load failed without automatic
// retry.
func (s *Service) Load(ctx context.Context, b backend.Backend) error {
	if b == nil {
		return backend.ErrNotConfigured
	}

	s.mu.Lock()
	if s.state == stateLoading {
		s.mu.Unlock()
		log.Println("[guide] load already in progress, skipping duplicate request")
		return nil
	}
	if s.bgCancel != nil {
		s.bgCancel()
		s.bgCancel = nil
	}
	s.state = stateLoading
	s.lastError = ""
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	if err := b.Authenticate(ctx); err != nil {
		s.failLoad(gen, err)
		return fmt.Errorf("authenticate: %w", err)
	}

	channels, err := b.Channels(ctx)
	if err != nil {
		s.failLoad(gen, err)
		return fmt.Errorf("load channels: %w", err)
	}

	// Secondary lookups inside are contained; only the channel fetch
	// itself is foundational.
	idmap := BuildIdentifierMap(ctx, channels, b.EPGSourceID, s.lookupLimit)

	s.mu.Lock()
	if s.generation != gen {
		// Invalidated while we were fetching; discard this generation.
		s.mu.Unlock()
		return nil
	}
	s.channels = channels
	s.channelsByID = make(map[int64]models.Channel, len(channels))
	for _, ch := range channels {
		s.channelsByID[ch.ID] = ch
	}
	s.idmap = idmap
	s.programs = make(map[int64][]models.Program)
	s.programIDs = make(map[int64]map[int64]struct{})
	s.loadedDays = make(map[string]struct{})
	s.state = stateLoaded

	bgCtx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel
	s.mu.Unlock()

	log.Printf("[guide] loaded %d channels, filling programs in background", len(channels))
	go s.backgroundFill(bgCtx, b, gen)

	return nil
}

func (s *Service) failLoad(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	s.state = stateFailed
	s.lastError = err.Error()
}

// backgroundFill loads the current day's programs: guide feed first, API
// listings when the whole feed is unusable. All failures here are silent
// from the caller's perspective; the next load cycle reconciles again.
func (s *Service) backgroundFill(ctx context.Context, b backend.Backend, gen uint64) {
	today := s.now()

	feed, err := b.GuideFeed(ctx)
	if err == nil {
		res, perr := IngestXMLTV(feed)
		feed.Close()
		if perr == nil {
			if ctx.Err() != nil {
				return
			}
			s.mu.Lock()
			if s.generation == gen && s.state == stateLoaded {
				s.idmap.RegisterFeedChannels(res.DisplayNames, s.channels, s.nameThreshold)
				added := s.mergeLocked(res.Programs)
				s.loadedDays[models.DayKey(today)] = struct{}{}
				log.Printf("[guide] guide feed ingested: %d programs indexed, %d dropped", added, res.Dropped)
			}
			s.mu.Unlock()
			return
		}
		log.Printf("[guide] guide feed unusable, falling back to listings api: %v", perr)
	} else {
		log.Printf("[guide] guide feed unavailable, falling back to listings api: %v", err)
	}

	if ctx.Err() != nil {
		return
	}
	if err := s.EnsureDay(ctx, b, today); err != nil {
		log.Printf("[guide] background day load: %v", err)
	}
}

// EnsureDay makes the given UTC calendar day's programs available. A day
// already in the loaded set returns immediately with no network call.
// Otherwise listings are fetched and merged per channel by program id, so
// repeated loads never duplicate an entry. A fetch failure is swallowed and
// the day left unmarked so a later call can retry.
func (s *Service) EnsureDay(ctx context.Context, b backend.Backend, date time.Time) error {
	if b == nil {
		return backend.ErrNotConfigured
	}
	key := models.DayKey(date)

	s.mu.RLock()
	_, done := s.loadedDays[key]
	loaded := s.state == stateLoaded
	gen := s.generation
	ids := make([]int64, 0, len(s.channels))
	for _, ch := range s.channels {
		ids = append(ids, ch.ID)
	}
	s.mu.RUnlock()

	if done {
		return nil
	}
	if !loaded || len(ids) == 0 {
		return nil
	}

	listings, err := b.AllListings(ctx, ids)
	if err != nil {
		log.Printf("[guide] listings fetch for %s failed: %v", key, err)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.state != stateLoaded {
		return nil
	}
	total := 0
	for channelID, progs := range listings {
		for i := range progs {
			progs[i].ChannelID = channelID
		}
		total += s.mergeLocked(progs)
	}
	s.loadedDays[key] = struct{}{}
	log.Printf("[guide] day %s loaded: %d new programs", key, total)
	return nil
}

// mergeLocked folds programs into the index, resolving feed channel strings
// through the identifier map, discarding anything that does not belong to a
// known channel, deduplicating by program id and keeping each channel's
// list sorted by start time. Caller holds s.mu.
func (s *Service) mergeLocked(programs []models.Program) int {
	touched := make(map[int64]bool)
	added := 0

	for _, p := range programs {
		if p.End <= p.Start {
			continue
		}
		if p.ChannelID == 0 {
			id, ok := s.idmap.ChannelFor(p.ChannelExt)
			if !ok {
				continue
			}
			p.ChannelID = id
		}
		if _, known := s.channelsByID[p.ChannelID]; !known {
			continue
		}

		seen := s.programIDs[p.ChannelID]
		if seen == nil {
			seen = make(map[int64]struct{})
			s.programIDs[p.ChannelID] = seen
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		p.ChannelExt = ""
		s.programs[p.ChannelID] = append(s.programs[p.ChannelID], p)
		touched[p.ChannelID] = true
		added++
	}

	for channelID := range touched {
		list := s.programs[channelID]
		sort.Slice(list, func(i, j int) bool { return list[i].Start < list[j].Start })
	}
	return added
}

// Programs returns the programs overlapping the given UTC calendar day for
// one channel, sorted by start time.
func (s *Service) Programs(channelID int64, date time.Time) []models.Program {
	dayStart, dayEnd := models.DayBounds(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Program
	for _, p := range s.programs[channelID] {
		if p.Start < dayEnd && p.End > dayStart {
			out = append(out, p)
		}
	}
	return out
}

// Channels returns the current channel catalog.
func (s *Service) Channels() []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// Channel looks up one channel by id.
func (s *Service) Channel(id int64) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channelsByID[id]
	return ch, ok
}

// StreamUUID returns the stream session UUID assigned to a channel during
// identifier resolution.
func (s *Service) StreamUUID(channelID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.idmap.StreamUUID(channelID)
	if !ok {
		return "", false
	}
	return u.String(), true
}

// Search scans the whole index for programs whose name, subtitle or
// description contains the query, case-insensitively. Programs that have
// not yet ended sort first, then by start time.
func (s *Service) Search(query string) []models.Program {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	now := s.now().Unix()

	s.mu.RLock()
	var out []models.Program
	for _, list := range s.programs {
		for _, p := range list {
			if programMatches(p, q) {
				out = append(out, p)
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].End > now, out[j].End > now
		if ai != aj {
			return ai
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// KeywordMatch is a still-airing program annotated with the keyword that
// selected it.
type KeywordMatch struct {
	Program models.Program `json:"program"`
	Keyword string         `json:"keyword"`
}

// MatchingKeywords returns programs that have not yet ended and match any
// of the keywords, each annotated with the first keyword that matches,
// sorted by start time.
func (s *Service) MatchingKeywords(keywords []string) []KeywordMatch {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	if len(lowered) == 0 {
		return nil
	}
	now := s.now().Unix()

	s.mu.RLock()
	var out []KeywordMatch
	for _, list := range s.programs {
		for _, p := range list {
			if p.End <= now {
				continue
			}
			for _, k := range lowered {
				if programMatches(p, k) {
					out = append(out, KeywordMatch{Program: p, Keyword: k})
					break
				}
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Program.Start != out[j].Program.Start {
			return out[i].Program.Start < out[j].Program.Start
		}
		return out[i].Program.ID < out[j].Program.ID
	})
	return out
}

func programMatches(p models.Program, loweredQuery string) bool {
	return strings.Contains(strings.ToLower(p.Name), loweredQuery) ||
		strings.Contains(strings.ToLower(p.Subtitle), loweredQuery) ||
		strings.Contains(strings.ToLower(p.Description), loweredQuery)
}

// Invalidate cancels any in-flight background load and clears all state,
// including the loaded-days set. Used on server reconfiguration.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bgCancel != nil {
		s.bgCancel()
		s.bgCancel = nil
	}
	s.generation++
	s.state = stateIdle
	s.lastError = ""
	s.channels = nil
	s.channelsByID = make(map[int64]models.Channel)
	s.idmap = newIdentifierMap()
	s.programs = make(map[int64][]models.Program)
	s.programIDs = make(map[int64]map[int64]struct{})
	s.loadedDays = make(map[string]struct{})
}

// Status is a snapshot of the index for the status endpoint.
type Status struct {
	State        string   `json:"state"`
	LastError    string   `json:"lastError,omitempty"`
	ChannelCount int      `json:"channelCount"`
	ProgramCount int      `json:"programCount"`
	MappedIDs    int      `json:"mappedIds"`
	LoadedDays   []string `json:"loadedDays"`
}

// Status reports the current state of the index.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	programs := 0
	for _, list := range s.programs {
		programs += len(list)
	}
	days := make([]string, 0, len(s.loadedDays))
	for d := range s.loadedDays {
		days = append(days, d)
	}
	sort.Strings(days)

	return Status{
		State:        s.state.String(),
		LastError:    s.lastError,
		ChannelCount: len(s.channels),
		ProgramCount: programs,
		MappedIDs:    s.idmap.Mapped(),
		LoadedDays:   days,
	}
}
