package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/playshuffle/backend/internal/replay"
	"github.com/redis/go-redis/v9"
	uuid "github.com/satori/go.uuid"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrPlayerBusy    = errors.New("player already in a match")
)

// finishedRetention is how long a finished match stays in memory so players
// can read the result and ask for a rematch.
const finishedRetention = 10 * time.Minute

const persistQueueSize = 256

// MatchManager owns every live match on this instance.
type MatchManager struct {
	matches       map[string]*Match // keyed by match ID
	tokens        map[string]string // match token -> match ID
	playerToMatch map[string]string // player ID -> match ID
	tables        map[string]*Table
	recorders     map[string]*replay.Recorder
	hooks         []Listener

	rdb    *redis.Client
	db     *sqlx.DB
	config *config.Config
	rules  Rules

	jobs    chan func()
	running atomic.Bool
	drained chan struct{}

	mu sync.RWMutex
}

// NewMatchRequest seats two players in a new match.
type NewMatchRequest struct {
	Token     string // generated when empty
	SessionID int    // existing match_sessions row, 0 to create one
	Players   [2]PlayerSpec
}

var (
	// Global match manager instance
	Manager *MatchManager
)

// InitializeManager builds the global manager and starts its background jobs.
func InitializeManager(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) error {
	mm, err := NewMatchManager(db, rdb, cfg)
	if err != nil {
		return err
	}
	Manager = mm
	go mm.RunPersistence(ctx)
	go mm.StartExpiryChecker(ctx)
	go mm.StartDisconnectChecker(ctx)
	return nil
}

func NewMatchManager(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) (*MatchManager, error) {
	rules, err := RulesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &config.Config{PhysicsMode: "client"}
	}
	return &MatchManager{
		matches:       make(map[string]*Match),
		tokens:        make(map[string]string),
		playerToMatch: make(map[string]string),
		tables:        make(map[string]*Table),
		recorders:     make(map[string]*replay.Recorder),
		rdb:           rdb,
		db:            db,
		config:        cfg,
		rules:         rules,
		jobs:          make(chan func(), persistQueueSize),
		drained:       make(chan struct{}),
	}, nil
}

func (mm *MatchManager) Config() *config.Config {
	return mm.config
}

// Rules returns the rules new matches are created with.
func (mm *MatchManager) Rules() Rules {
	return mm.rules
}

// generateToken generates a secure random token
func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func generateMatchID() string {
	return "match_" + uuid.NewV4().String()
}

// OnEvent registers a hook that sees every event of every match.
func (mm *MatchManager) OnEvent(l Listener) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.hooks = append(mm.hooks, l)
}

// CreateMatch seats both players and registers the match. With server
// physics a table goroutine starts integrating shots right away.
func (mm *MatchManager) CreateMatch(req NewMatchRequest) (*Match, error) {
	players := req.Players
	for i := range players {
		if players[i].ID == "" {
			players[i].ID = fmt.Sprintf("p%d_%s", i+1, generateToken(6))
		}
		if !players[i].AI && players[i].Token == "" {
			players[i].Token = generateToken(16)
		}
	}
	if players[0].ID == players[1].ID {
		return nil, fmt.Errorf("create match: both seats have player %q", players[0].ID)
	}

	token := req.Token
	if token == "" {
		token = generateToken(16)
	}

	opts := MatchOptions{
		ID:        generateMatchID(),
		Token:     token,
		Players:   players,
		Rules:     mm.rules,
		Policy:    TargetPolicy{Friction: mm.friction(), Jitter: 0.04, AimJitter: 0.03},
		Rand:      mrand.New(mrand.NewSource(time.Now().UnixNano())),
		ExpiresAt: time.Now().Add(time.Duration(mm.config.MatchExpiryMinutes) * time.Minute),
	}
	var sim *Simulator
	if mm.ServerPhysics() {
		sim = NewSimulator(mm.rules.Board, mm.friction())
		opts.Physics = sim
	}

	if err := mm.seatsFree(players); err != nil {
		return nil, err
	}
	m, err := NewMatch(opts)
	if err != nil {
		return nil, err
	}
	m.SessionID = req.SessionID
	if m.SessionID == 0 {
		id, err := mm.CreateSession(m)
		if err != nil {
			return nil, err
		}
		m.SessionID = id
	}

	mm.mu.Lock()
	mm.matches[m.ID] = m
	mm.tokens[m.Token] = m.ID
	for _, p := range m.Players {
		mm.playerToMatch[p.ID] = m.ID
	}
	mm.recorders[m.ID] = replay.NewRecorder(m.ID)
	var table *Table
	if sim != nil {
		table = NewTable(m, sim, mm.config.TickHz)
		mm.tables[m.ID] = table
	}
	mm.mu.Unlock()

	m.Subscribe(mm.handleEvent)
	if table != nil {
		go table.Run()
	}

	logging.Log.Infof("[MATCH] Created %s token=%s session=%d players=[%s,%s]",
		m.ID, m.Token, m.SessionID, m.Players[0].ID, m.Players[1].ID)
	return m, nil
}

// seatsFree rejects humans who already sit in a live match.
func (mm *MatchManager) seatsFree(players [2]PlayerSpec) error {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	for _, p := range players {
		if p.AI {
			continue
		}
		id, busy := mm.playerToMatch[p.ID]
		if !busy {
			continue
		}
		if m, ok := mm.matches[id]; ok && m.Status() != StatusCompleted && m.Status() != StatusCancelled {
			return ErrPlayerBusy
		}
	}
	return nil
}

// CreateAIMatch seats a human against the computer.
func (mm *MatchManager) CreateAIMatch(human PlayerSpec) (*Match, error) {
	human.AI = false
	return mm.CreateMatch(NewMatchRequest{
		Players: [2]PlayerSpec{
			human,
			{ID: "ai_" + generateToken(6), DisplayName: "Computer", AI: true},
		},
	})
}

// ServerPhysics reports whether this instance integrates shots itself. In
// client mode the acting player's client streams disc ticks instead.
func (mm *MatchManager) ServerPhysics() bool {
	return mm.config.PhysicsMode == "server"
}

func (mm *MatchManager) friction() float64 {
	if mm.config.BoardFriction > 0 {
		return mm.config.BoardFriction
	}
	return BoardFriction
}

// GetMatch retrieves a live match by ID.
func (mm *MatchManager) GetMatch(matchID string) (*Match, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	m, ok := mm.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// GetMatchByToken retrieves a live match by its shareable token.
func (mm *MatchManager) GetMatchByToken(token string) (*Match, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	id, ok := mm.tokens[token]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return mm.matches[id], nil
}

// GetMatchForPlayer retrieves the match a player is seated in.
func (mm *MatchManager) GetMatchForPlayer(playerID string) (*Match, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	id, ok := mm.playerToMatch[playerID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	m, ok := mm.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

// EndMatch removes a match from memory, cancelling it if it was unfinished.
func (mm *MatchManager) EndMatch(matchID string) error {
	mm.mu.Lock()
	m, ok := mm.matches[matchID]
	if !ok {
		mm.mu.Unlock()
		return ErrMatchNotFound
	}
	table := mm.tables[matchID]
	delete(mm.matches, matchID)
	delete(mm.tokens, m.Token)
	delete(mm.tables, matchID)
	for _, p := range m.Players {
		if mm.playerToMatch[p.ID] == matchID {
			delete(mm.playerToMatch, p.ID)
		}
	}
	mm.mu.Unlock()

	if table != nil {
		table.Stop()
	}
	// listeners still see the cancel event; the recorder goes after
	m.Close()

	mm.mu.Lock()
	delete(mm.recorders, matchID)
	mm.mu.Unlock()
	return nil
}

// Rematch restarts a finished match with the same seats. Matches still in
// play are left untouched.
func (mm *MatchManager) Rematch(token string) (*Match, error) {
	m, err := mm.GetMatchByToken(token)
	if err != nil {
		return nil, err
	}
	if err := m.Rematch(); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMatches returns a snapshot of every live match, newest first.
func (mm *MatchManager) ListMatches() []Snapshot {
	matches := mm.all()

	out := make([]Snapshot, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ActiveMatchCount counts matches that are waiting or in progress.
func (mm *MatchManager) ActiveMatchCount() int {
	matches := mm.all()

	n := 0
	for _, m := range matches {
		if s := m.Status(); s == StatusWaiting || s == StatusInProgress {
			n++
		}
	}
	return n
}

func (mm *MatchManager) all() []*Match {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	out := make([]*Match, 0, len(mm.matches))
	for _, m := range mm.matches {
		out = append(out, m)
	}
	return out
}

func (mm *MatchManager) recorder(matchID string) *replay.Recorder {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.recorders[matchID]
}

// handleEvent is subscribed to every match. It records the event for the
// replay, queues the durable writes it implies and then runs the hooks.
func (mm *MatchManager) handleEvent(m *Match, e Event) {
	rec := mm.recorder(m.ID)
	if rec != nil {
		if e.Type == EventReset {
			rec.Reset()
		}
		if err := rec.Append(string(e.Type), e.At, e); err != nil && !errors.Is(err, replay.ErrClosed) {
			logging.Log.Warnf("[REPLAY] Failed to record %s for %s: %v", e.Type, m.ID, err)
		}
	}

	sessionID := m.SessionID
	switch e.Type {
	case EventMatchStarted:
		at := e.At
		mm.enqueue(func() { mm.MarkSessionStarted(sessionID, at) })
		mm.queueSnapshot(m)
	case EventShot:
		if e.Shot != nil && e.Player > 0 {
			dbID := m.Players[e.Player-1].DBPlayerID
			shot, round, n := *e.Shot, e.Round, e.ShotNo
			mm.enqueue(func() { mm.RecordShot(sessionID, dbID, round, n, shot) })
		}
	case EventRoundScored:
		if e.Score != nil {
			rs := *e.Score
			mm.enqueue(func() { mm.SaveRound(sessionID, rs) })
		}
		mm.queueSnapshot(m)
	case EventSuddenDeath:
		mm.queueSnapshot(m)
	case EventGameOver:
		mm.queueFinal(m, e, rec)
		mm.queueSnapshot(m)
	case EventReset:
		mm.enqueue(func() { mm.ResetSession(sessionID) })
		mm.queueSnapshot(m)
	case EventCancelled:
		mm.enqueue(func() { mm.MarkSessionCancelled(sessionID) })
		mm.queueSnapshot(m)
	}

	mm.mu.RLock()
	hooks := mm.hooks
	mm.mu.RUnlock()
	for _, h := range hooks {
		h(m, e)
	}
}

func (mm *MatchManager) queueSnapshot(m *Match) {
	if mm.rdb == nil {
		return
	}
	snap := m.Snapshot()
	mm.enqueue(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := mm.SaveSnapshot(ctx, snap); err != nil {
			logging.Log.Warnf("[REDIS] Failed to save snapshot for %s: %v", snap.MatchID, err)
		}
	})
}

func (mm *MatchManager) queueFinal(m *Match, e Event, rec *replay.Recorder) {
	if e.Result == nil {
		return
	}
	fr := finalRecord{
		SessionID: m.SessionID,
		DBPlayers: [2]int{m.Players[0].DBPlayerID, m.Players[1].DBPlayerID},
		Result:    *e.Result,
		StartedAt: m.Snapshot().StartedAt,
	}
	if rec != nil {
		fr.EventCount = rec.Len()
		blob, err := rec.Finish()
		if err != nil {
			logging.Log.Errorf("[REPLAY] Failed to encode replay for %s: %v", m.ID, err)
		} else {
			fr.ReplayBlob = blob
		}
	}
	matchID, created := m.ID, m.CreatedAt
	mm.enqueue(func() {
		if err := mm.SaveFinalResult(fr); err != nil {
			logging.Log.Errorf("[DB] Failed to save final result for session %d: %v", fr.SessionID, err)
		}
		if dir := mm.config.ReplayDir; dir != "" && len(fr.ReplayBlob) > 0 {
			if path, err := replay.WriteFile(dir, matchID, fr.ReplayBlob, created); err != nil {
				logging.Log.Errorf("[REPLAY] Failed to write replay for %s: %v", matchID, err)
			} else {
				logging.Log.Infof("[REPLAY] Wrote %s", path)
			}
		}
	})
}

// Replay returns the compressed event archive of a finished match, from
// memory when it is still live and from Postgres otherwise.
func (mm *MatchManager) Replay(token string) ([]byte, error) {
	if m, err := mm.GetMatchByToken(token); err == nil {
		if m.Status() != StatusCompleted {
			return nil, ErrNotInProgress
		}
		if rec := mm.recorder(m.ID); rec != nil {
			return rec.Finish()
		}
	}
	return mm.LoadReplay(token)
}

// enqueue hands a durable write to the persistence goroutine, keeping the
// writes of one match in event order. Without a running worker the job runs
// inline.
func (mm *MatchManager) enqueue(job func()) {
	if !mm.running.Load() {
		job()
		return
	}
	select {
	case mm.jobs <- job:
	default:
		logging.Log.Warnf("[DB] Persistence queue full; writing inline")
		job()
	}
}

// RunPersistence drains queued writes until ctx is done. It must only be
// started once per manager.
func (mm *MatchManager) RunPersistence(ctx context.Context) {
	mm.running.Store(true)
	defer close(mm.drained)
	defer mm.running.Store(false)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case job := <-mm.jobs:
					job()
				default:
					return
				}
			}
		case job := <-mm.jobs:
			job()
		}
	}
}

// Drained is closed once RunPersistence has flushed its queue and returned.
func (mm *MatchManager) Drained() <-chan struct{} {
	return mm.drained
}

// StartExpiryChecker periodically cancels matches nobody started and drops
// finished ones from memory.
func (mm *MatchManager) StartExpiryChecker(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			mm.checkExpiredMatches(now)
		}
	}
}

func (mm *MatchManager) checkExpiredMatches(now time.Time) {
	matches := mm.all()

	for _, m := range matches {
		snap := m.Snapshot()
		switch snap.Status {
		case StatusWaiting:
			if m.ExpiresAt.IsZero() || now.Before(m.ExpiresAt) {
				continue
			}
			logging.Log.Infof("[EXPIRY] Match %s expired before both players joined", m.ID)
		case StatusCompleted, StatusCancelled:
			if snap.CompletedAt == nil || now.Sub(*snap.CompletedAt) < finishedRetention {
				continue
			}
		default:
			continue
		}
		mm.EndMatch(m.ID)
	}
}

// StartDisconnectChecker forfeits players whose socket has been gone longer
// than the grace period.
func (mm *MatchManager) StartDisconnectChecker(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			mm.checkDisconnectForfeits(now)
		}
	}
}

func (mm *MatchManager) checkDisconnectForfeits(now time.Time) {
	grace := time.Duration(mm.config.DisconnectGraceSeconds) * time.Second
	if grace <= 0 {
		grace = 2 * time.Minute
	}

	matches := mm.all()

	for _, m := range matches {
		if m.Status() != StatusInProgress {
			continue
		}
		for _, p := range m.Players {
			if p.AI {
				continue
			}
			connected, since := m.IsConnected(p.ID)
			if connected || since == nil || now.Sub(*since) <= grace {
				continue
			}
			if err := m.Forfeit(p.Number, WinDisconnect); err == nil {
				logging.Log.Infof("[DISCONNECT] Player %s forfeited match %s", p.ID, m.ID)
			}
			break
		}
	}
}
