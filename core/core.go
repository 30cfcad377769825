// Package core owns the multi-party session domain: session lifecycle,
// turn-taking, messaging and derived performance metrics. Authorization of
// callers happens at the API boundary; this package enforces role rules
// within a session.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mythologiq/hearthlink-core/domain"
	serrors "github.com/mythologiq/hearthlink-core/errors"
	"github.com/mythologiq/hearthlink-core/internal/audit"
	"github.com/mythologiq/hearthlink-core/internal/metrics"
	"github.com/mythologiq/hearthlink-core/services"
)

// Notifier pushes session events to connected parties. Delivery is
// best-effort: the orchestrator never blocks or fails on push problems.
type Notifier interface {
	TurnAdvanced(sessionID, previousHolder, newHolder string)
	MessagePosted(sessionID string, msg *domain.Message)
	ParticipantJoined(sessionID string, p *domain.Participant)
	SessionStateChanged(sessionID string, status domain.ChatSessionStatus)
}

// ParticipantSpec describes a participant to admit into a session.
type ParticipantSpec struct {
	SubjectID    string                 `json:"subject_id"`
	Name         string                 `json:"name"`
	Kind         domain.ParticipantKind `json:"kind"`
	Role         domain.ParticipantRole `json:"role"`
	Capabilities []string               `json:"capabilities,omitempty"`
}

// Options tune orchestrator policy.
type Options struct {
	ParticipantCap int
	// AllowSelfJoin admits a caller adding themselves without facilitator
	// rights.
	AllowSelfJoin bool
	Scorer        Scorer
}

// sessionHandle pairs a session with its serialization lock. Every mutating
// operation on one session id runs under this lock, so two near-simultaneous
// turn advances cannot both observe the same turn index.
type sessionHandle struct {
	mu sync.Mutex
	s  *domain.ChatSession
}

// Core is the session orchestrator.
type Core struct {
	notifier Notifier
	blobs    services.BlobStore
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*sessionHandle
}

// New constructs a Core. notifier and blobs may be nil (no push, no archive).
func New(notifier Notifier, blobs services.BlobStore, opts Options) *Core {
	if opts.ParticipantCap <= 0 {
		opts.ParticipantCap = 20
	}
	if opts.Scorer == nil {
		opts.Scorer = DefaultScorer
	}
	return &Core{
		notifier: notifier,
		blobs:    blobs,
		opts:     opts,
		sessions: make(map[string]*sessionHandle),
	}
}

func (c *Core) handle(sessionID string) (*sessionHandle, error) {
	c.mu.RLock()
	h, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, serrors.ErrNotFound)
	}
	return h, nil
}

// CreateSession validates the topic and participant bound and registers a new
// session in the Created state.
func (c *Core) CreateSession(ctx context.Context, creatorID, topic string, initial []ParticipantSpec) (*domain.ChatSession, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("topic must not be empty: %w", serrors.ErrInvalidArgument)
	}
	if len(initial) > c.opts.ParticipantCap {
		return nil, serrors.ErrSessionFull
	}

	now := time.Now()
	session := &domain.ChatSession{
		ID:        uuid.NewString(),
		Topic:     topic,
		CreatorID: creatorID,
		Status:    domain.ChatSessionCreated,
		CreatedAt: now,
	}
	for _, spec := range initial {
		session.Participants = append(session.Participants, newParticipant(session.ID, spec, now))
	}

	c.mu.Lock()
	c.sessions[session.ID] = &sessionHandle{s: session}
	c.mu.Unlock()

	metrics.ChatSessionsActive.Inc()
	audit.Log("Core", "CreateSession", creatorID, session.ID, topic, true, nil)
	log.Ctx(ctx).Info().Str("session_id", session.ID).Str("creator_id", creatorID).
		Int("participants", len(session.Participants)).Msg("session created")
	return snapshot(session), nil
}

func newParticipant(sessionID string, spec ParticipantSpec, now time.Time) *domain.Participant {
	role := spec.Role
	if !role.Valid() {
		role = domain.RoleParticipant
	}
	kind := spec.Kind
	if kind == "" {
		kind = domain.KindUser
	}
	return &domain.Participant{
		ID:            uuid.NewString(),
		ChatSessionID: sessionID,
		SubjectID:     spec.SubjectID,
		Name:          spec.Name,
		Kind:          kind,
		Role:          role,
		Capabilities:  spec.Capabilities,
		JoinedAt:      now,
	}
}

// GetSession returns a point-in-time copy of a session.
func (c *Core) GetSession(_ context.Context, sessionID string) (*domain.ChatSession, error) {
	h, err := c.handle(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return snapshot(h.s), nil
}

// ActiveSessions lists every session that has not ended.
func (c *Core) ActiveSessions(_ context.Context) []*domain.ChatSession {
	c.mu.RLock()
	handles := make([]*sessionHandle, 0, len(c.sessions))
	for _, h := range c.sessions {
		handles = append(handles, h)
	}
	c.mu.RUnlock()

	var out []*domain.ChatSession
	for _, h := range handles {
		h.mu.Lock()
		if h.s.Status != domain.ChatSessionEnded {
			out = append(out, snapshot(h.s))
		}
		h.mu.Unlock()
	}
	return out
}

// AddParticipant admits a participant. Only the creator or a facilitator may
// add others; self-join is policy-gated.
func (c *Core) AddParticipant(ctx context.Context, sessionID, callerID string, spec ParticipantSpec) (*domain.Participant, error) {
	h, err := c.handle(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.Status == domain.ChatSessionEnded {
		return nil, serrors.ErrAlreadyEnded
	}
	selfJoin := c.opts.AllowSelfJoin && spec.SubjectID == callerID
	if !h.s.IsFacilitator(callerID) && !selfJoin {
		return nil, fmt.Errorf("caller %s may not add participants: %w", callerID, serrors.ErrForbidden)
	}
	if len(h.s.Participants) >= c.opts.ParticipantCap {
		return nil, serrors.ErrSessionFull
	}
	if existing := h.s.ParticipantBySubject(spec.SubjectID); existing != nil {
		return nil, fmt.Errorf("subject %s: %w", spec.SubjectID, serrors.ErrAlreadyJoined)
	}

	p := newParticipant(h.s.ID, spec, time.Now())
	h.s.Participants = append(h.s.Participants, p)

	c.notifyParticipantJoined(h.s.ID, p)
	log.Ctx(ctx).Info().Str("session_id", sessionID).Str("participant_id", p.ID).
		Str("role", string(p.Role)).Msg("participant added")
	out := *p
	return &out, nil
}

// RemoveParticipant removes a participant and drops them from the turn
// order. Facilitator only.
func (c *Core) RemoveParticipant(ctx context.Context, sessionID, callerID, participantID string) error {
	h, err := c.handle(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.Status == domain.ChatSessionEnded {
		return serrors.ErrAlreadyEnded
	}
	if !h.s.IsFacilitator(callerID) {
		return fmt.Errorf("caller %s may not remove participants: %w", callerID, serrors.ErrForbidden)
	}

	idx := -1
	for i, p := range h.s.Participants {
		if p.ID == participantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("participant %s: %w", participantID, serrors.ErrNotFound)
	}
	h.s.Participants = append(h.s.Participants[:idx], h.s.Participants[idx+1:]...)
	c.dropFromTurnOrder(h.s, participantID)

	log.Ctx(ctx).Info().Str("session_id", sessionID).Str("participant_id", participantID).
		Msg("participant removed")
	return nil
}

// dropFromTurnOrder removes one id from the rotation, keeping the current
// index pointed at the same holder where possible.
func (c *Core) dropFromTurnOrder(s *domain.ChatSession, participantID string) {
	for i, id := range s.TurnOrder {
		if id != participantID {
			continue
		}
		s.TurnOrder = append(s.TurnOrder[:i], s.TurnOrder[i+1:]...)
		if len(s.TurnOrder) == 0 {
			s.CurrentTurnIndex = 0
			return
		}
		if i < s.CurrentTurnIndex {
			s.CurrentTurnIndex--
		}
		s.CurrentTurnIndex %= len(s.TurnOrder)
		return
	}
}

// UpdateParticipantRole reassigns a participant's role. Facilitator only.
func (c *Core) UpdateParticipantRole(ctx context.Context, sessionID, callerID, participantID string, role domain.ParticipantRole) error {
	h, err := c.handle(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.Status == domain.ChatSessionEnded {
		return serrors.ErrAlreadyEnded
	}
	if !h.s.IsFacilitator(callerID) {
		return fmt.Errorf("caller %s may not update roles: %w", callerID, serrors.ErrForbidden)
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q: %w", role, serrors.ErrInvalidArgument)
	}

	p := h.s.ParticipantByID(participantID)
	if p == nil {
		return fmt.Errorf("participant %s: %w", participantID, serrors.ErrNotFound)
	}
	p.Role = role
	log.Ctx(ctx).Info().Str("session_id", sessionID).Str("participant_id", participantID).
		Str("role", string(role)).Msg("participant role updated")
	return nil
}

// StartTurnTaking activates the session with the given rotation. The order
// must be a non-empty, duplicate-free subset of participant ids.
func (c *Core) StartTurnTaking(ctx context.Context, sessionID, callerID string, turnOrder []string) error {
	h, err := c.handle(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.s.Status {
	case domain.ChatSessionEnded:
		return serrors.ErrAlreadyEnded
	case domain.ChatSessionPaused:
		return serrors.ErrNotActive
	}
	if !h.s.IsFacilitator(callerID) {
		return fmt.Errorf("caller %s may not start turn-taking: %w", callerID, serrors.ErrForbidden)
	}
	if len(turnOrder) == 0 {
		return fmt.Errorf("turn order is empty: %w", serrors.ErrInvalidTurnOrder)
	}
	seen := make(map[string]bool, len(turnOrder))
	for _, id := range turnOrder {
		if seen[id] {
			return fmt.Errorf("participant %s appears twice: %w", id, serrors.ErrInvalidTurnOrder)
		}
		seen[id] = true
		if h.s.ParticipantByID(id) == nil {
			return fmt.Errorf("unknown participant %s: %w", id, serrors.ErrInvalidTurnOrder)
		}
	}

	h.s.TurnOrder = append([]string(nil), turnOrder...)
	h.s.CurrentTurnIndex = 0
	h.s.Status = domain.ChatSessionActive

	log.Ctx(ctx).Info().Str("session_id", sessionID).Int("order_len", len(turnOrder)).
		Str("first_holder", turnOrder[0]).Msg("turn-taking started")
	return nil
}

// AdvanceTurn moves the rotation forward one step. Only the current holder
// (by subject) or a facilitator may advance; the loser of a race observes a
// TurnOrderViolation, never a silent double advance.
func (c *Core) AdvanceTurn(ctx context.Context, sessionID, callerID string) (previousHolder, newHolder string, err error) {
	h, err := c.handle(sessionID)
	if err != nil {
		return "", "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.Status != domain.ChatSessionActive {
		if h.s.Status == domain.ChatSessionEnded {
			return "", "", serrors.ErrAlreadyEnded
		}
		return "", "", serrors.ErrNotActive
	}
	// Removing participants can drain the rotation while the session stays
	// active; advancing an empty rotation has no holder to hand to.
	if len(h.s.TurnOrder) == 0 {
		return "", "", fmt.Errorf("turn order is empty: %w", serrors.ErrInvalidTurnOrder)
	}

	holder := h.s.CurrentTurnHolder()
	holderParticipant := h.s.ParticipantByID(holder)
	isHolder := holderParticipant != nil && holderParticipant.SubjectID == callerID
	if !isHolder && !h.s.IsFacilitator(callerID) {
		return "", "", fmt.Errorf("caller %s is not the turn holder: %w", callerID, serrors.ErrTurnOrderViolation)
	}

	h.s.CurrentTurnIndex = (h.s.CurrentTurnIndex + 1) % len(h.s.TurnOrder)
	h.s.TurnSwitchCount++
	next := h.s.CurrentTurnHolder()

	metrics.TurnAdvancesTotal.Inc()
	c.notifyTurnAdvanced(h.s.ID, holder, next)
	log.Ctx(ctx).Debug().Str("session_id", sessionID).Str("previous", holder).
		Str("next", next).Msg("turn advanced")
	return holder, next, nil
}

// PostMessage appends to the session log. The caller must be a participant
// and the session must be active.
func (c *Core) PostMessage(ctx context.Context, sessionID, callerID, body string) (*domain.Message, error) {
	h, err := c.handle(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.Status != domain.ChatSessionActive {
		if h.s.Status == domain.ChatSessionEnded {
			return nil, serrors.ErrAlreadyEnded
		}
		return nil, serrors.ErrNotActive
	}
	sender := h.s.ParticipantBySubject(callerID)
	if sender == nil {
		return nil, fmt.Errorf("caller %s is not a participant: %w", callerID, serrors.ErrForbidden)
	}

	msg := &domain.Message{
		ID:            uuid.NewString(),
		ChatSessionID: h.s.ID,
		SenderID:      sender.ID,
		Body:          body,
		Timestamp:     time.Now(),
	}
	h.s.Messages = append(h.s.Messages, msg)

	metrics.MessagesPostedTotal.Inc()
	c.notifyMessagePosted(h.s.ID, msg)
	out := *msg
	return &out, nil
}

// Messages returns the append-only message log in creation order. Late
// joiners replay from here; realtime push is best-effort on top.
func (c *Core) Messages(_ context.Context, sessionID string) ([]*domain.Message, error) {
	h, err := c.handle(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*domain.Message, len(h.s.Messages))
	for i, m := range h.s.Messages {
		msg := *m
		out[i] = &msg
	}
	return out, nil
}

// Performance computes the derived metrics snapshot. Pure read.
func (c *Core) Performance(_ context.Context, sessionID string) (*domain.SessionMetrics, error) {
	h, err := c.handle(sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.s
	end := time.Now()
	if s.EndedAt != nil {
		end = *s.EndedAt
	}

	factors := ScoreFactors{
		Duration:         end.Sub(s.CreatedAt),
		ParticipantCount: len(s.Participants),
		MessageCount:     len(s.Messages),
		TurnSwitchCount:  s.TurnSwitchCount,
		Balance:          participationBalance(s),
	}
	return &domain.SessionMetrics{
		SessionID:        s.ID,
		Duration:         factors.Duration,
		ParticipantCount: factors.ParticipantCount,
		MessageCount:     factors.MessageCount,
		TurnSwitchCount:  factors.TurnSwitchCount,
		PerformanceScore: c.opts.Scorer(factors),
	}, nil
}

// PauseSession suspends an active session. Facilitator only.
func (c *Core) PauseSession(ctx context.Context, sessionID, callerID string) error {
	return c.transition(ctx, sessionID, callerID, domain.ChatSessionActive, domain.ChatSessionPaused)
}

// ResumeSession reactivates a paused session. Facilitator only.
func (c *Core) ResumeSession(ctx context.Context, sessionID, callerID string) error {
	return c.transition(ctx, sessionID, callerID, domain.ChatSessionPaused, domain.ChatSessionActive)
}

func (c *Core) transition(ctx context.Context, sessionID, callerID string, from, to domain.ChatSessionStatus) error {
	h, err := c.handle(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.Status == domain.ChatSessionEnded {
		return serrors.ErrAlreadyEnded
	}
	if !h.s.IsFacilitator(callerID) {
		return fmt.Errorf("caller %s may not change session state: %w", callerID, serrors.ErrForbidden)
	}
	if h.s.Status != from {
		return serrors.ErrNotActive
	}

	h.s.Status = to
	c.notifyStateChanged(h.s.ID, to)
	log.Ctx(ctx).Info().Str("session_id", sessionID).Str("status", string(to)).Msg("session state changed")
	return nil
}

// EndSession moves the session to its terminal state, pushes the final
// notification and archives the transcript to the external blob store.
func (c *Core) EndSession(ctx context.Context, sessionID, callerID string) error {
	h, err := c.handle(sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.Status == domain.ChatSessionEnded {
		return serrors.ErrAlreadyEnded
	}
	if !h.s.IsFacilitator(callerID) {
		return fmt.Errorf("caller %s may not end the session: %w", callerID, serrors.ErrForbidden)
	}

	now := time.Now()
	h.s.Status = domain.ChatSessionEnded
	h.s.EndedAt = &now

	metrics.ChatSessionsActive.Dec()
	c.notifyStateChanged(h.s.ID, domain.ChatSessionEnded)
	c.archive(ctx, h.s)
	audit.Log("Core", "EndSession", callerID, sessionID, "", true, nil)
	log.Ctx(ctx).Info().Str("session_id", sessionID).Msg("session ended")
	return nil
}

// archive writes the ended session through the external blob store.
// Best-effort: the session is already terminal, archive failure is logged.
func (c *Core) archive(ctx context.Context, s *domain.ChatSession) {
	if c.blobs == nil {
		return
	}
	blob, err := json.Marshal(s)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("session_id", s.ID).Msg("session archive marshal failed")
		return
	}
	if err := c.blobs.Write(ctx, "session:"+s.ID, blob); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("session_id", s.ID).Msg("session archive write failed")
	}
}

func (c *Core) notifyTurnAdvanced(sessionID, prev, next string) {
	if c.notifier != nil {
		c.notifier.TurnAdvanced(sessionID, prev, next)
	}
}

func (c *Core) notifyMessagePosted(sessionID string, msg *domain.Message) {
	if c.notifier != nil {
		m := *msg
		c.notifier.MessagePosted(sessionID, &m)
	}
}

func (c *Core) notifyParticipantJoined(sessionID string, p *domain.Participant) {
	if c.notifier != nil {
		cp := *p
		c.notifier.ParticipantJoined(sessionID, &cp)
	}
}

func (c *Core) notifyStateChanged(sessionID string, status domain.ChatSessionStatus) {
	if c.notifier != nil {
		c.notifier.SessionStateChanged(sessionID, status)
	}
}

// snapshot deep-copies the mutable parts of a session so callers can read it
// without holding the session lock.
func snapshot(s *domain.ChatSession) *domain.ChatSession {
	out := *s
	out.Participants = make([]*domain.Participant, len(s.Participants))
	for i, p := range s.Participants {
		cp := *p
		out.Participants[i] = &cp
	}
	out.TurnOrder = append([]string(nil), s.TurnOrder...)
	out.Messages = make([]*domain.Message, len(s.Messages))
	for i, m := range s.Messages {
		cm := *m
		out.Messages[i] = &cm
	}
	return &out
}
