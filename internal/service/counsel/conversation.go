// Package counsel drives a counselling conversation: it screens every turn
// for safety, composes the model prompt and keeps the session log current.
package counsel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/analysis/safety"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/profile"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/ai"
	chatsvc "github.com/abimbolaoige/kfm-counsel-chat/internal/service/chat"
	profilesvc "github.com/abimbolaoige/kfm-counsel-chat/internal/service/profile"
)

var (
	ErrTurnInFlight         = errors.New("a reply is still pending")
	ErrModelCallFailed      = errors.New("model call failed")
	ErrEmptyMessage         = errors.New("message text is required")
	ErrVerificationRequired = errors.New("verification required")
)

// State is the orchestrator state.
type State int

const (
	Idle State = iota
	AwaitingModelReply
	SafetyTripped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingModelReply:
		return "awaiting_model_reply"
	case SafetyTripped:
		return "safety_tripped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{Idle, AwaitingModelReply, SafetyTripped} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Source names which side of the exchange tripped the safety check.
type Source string

const (
	SourceUser  Source = "user"
	SourceModel Source = "model"
)

// Escalation is raised when a turn trips the safety check.
type Escalation struct {
	SessionID string          `json:"sessionId"`
	Source    Source          `json:"source"`
	Category  safety.Category `json:"category"`
}

// Turn reports the outcome of one submission.
type Turn struct {
	SessionID  string        `json:"sessionId"`
	State      State         `json:"state"`
	User       chat.Message  `json:"user"`
	Reply      *chat.Message `json:"reply,omitempty"`
	Escalation *Escalation   `json:"escalation,omitempty"`
}

// Detector classifies text for the safety check.
type Detector interface {
	Detect(text string) (safety.Finding, bool)
}

// Options wires a Conversation.
type Options struct {
	Identity     *identity.Identity
	Directory    *chatsvc.Directory
	Log          *chatsvc.Log
	Clock        *chat.Clock
	Model        ai.Sender
	Profiles     *profilesvc.Service
	Detector     Detector
	HistoryLimit int
}

// Conversation is the per-scope orchestrator. Only one turn runs at a time.
type Conversation struct {
	dir          *chatsvc.Directory
	log          *chatsvc.Log
	clock        *chat.Clock
	model        ai.Sender
	profiles     *profilesvc.Service
	detector     Detector
	historyLimit int

	ctx    context.Context
	cancel context.CancelFunc

	switchMu sync.Mutex

	mu          sync.Mutex
	identity    *identity.Identity
	state       State
	inFlight    bool
	escalation  *Escalation
	playback    Playback
	escalations map[int]func(Escalation)
	nextID      int
	stopDir     func()
}

// New creates a Conversation. Call Start before submitting.
func New(opts Options) *Conversation {
	if opts.Clock == nil {
		opts.Clock = chat.NewClock(nil)
	}
	if opts.Detector == nil {
		opts.Detector = safety.Scanner{}
	}
	if opts.Model == nil {
		opts.Model = ai.Unavailable{}
	}
	if opts.HistoryLimit == 0 {
		opts.HistoryLimit = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Conversation{
		dir:          opts.Directory,
		log:          opts.Log,
		clock:        opts.Clock,
		model:        opts.Model,
		profiles:     opts.Profiles,
		detector:     opts.Detector,
		historyLimit: opts.HistoryLimit,
		identity:     opts.Identity,
		ctx:          ctx,
		cancel:       cancel,
		escalations:  make(map[int]func(Escalation)),
	}
}

// Start loads the session list (bootstrapping one session when empty),
// follows remote pushes and opens the active session.
func (c *Conversation) Start(ctx context.Context) error {
	if _, err := c.dir.List(ctx); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	if err := c.dir.Watch(c.ctx); err != nil {
		log.Printf("[counsel] session watch failed: %v", err)
	}

	stop := c.dir.OnChange(func(_ []chat.Session, active string) {
		if active != c.log.SessionID() {
			go c.activate(c.ctx)
		}
	})
	c.mu.Lock()
	c.stopDir = stop
	c.mu.Unlock()

	return c.activate(ctx)
}

// activate opens the directory's active session in the log when it changed.
func (c *Conversation) activate(ctx context.Context) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	if c.ctx.Err() != nil {
		return nil
	}
	active := c.dir.Active()
	if active == c.log.SessionID() {
		return nil
	}

	c.mu.Lock()
	c.playback = Playback{}
	c.mu.Unlock()

	if active == "" {
		c.log.Close()
		return nil
	}
	return c.log.Open(ctx, active)
}

// SetIdentity refreshes the caller's identity, e.g. after verification.
func (c *Conversation) SetIdentity(id *identity.Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

// Identity returns the identity the conversation was opened for, or nil.
func (c *Conversation) Identity() *identity.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Directory exposes the session list.
func (c *Conversation) Directory() *chatsvc.Directory { return c.dir }

// Log exposes the active session log.
func (c *Conversation) Log() *chatsvc.Log { return c.log }

// Profiles exposes the profile service of the scope.
func (c *Conversation) Profiles() *profilesvc.Service { return c.profiles }

// State returns the current orchestrator state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Escalation returns the pending escalation, if the conversation is tripped.
func (c *Conversation) Escalation() (Escalation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.escalation == nil {
		return Escalation{}, false
	}
	return *c.escalation, true
}

// AcknowledgeSafety leaves the tripped state.
func (c *Conversation) AcknowledgeSafety() {
	c.mu.Lock()
	if c.state == SafetyTripped {
		c.state = Idle
	}
	c.escalation = nil
	c.mu.Unlock()
}

// OnEscalation registers fn and returns a function that unregisters it.
func (c *Conversation) OnEscalation(fn func(Escalation)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.escalations[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.escalations, id)
		c.mu.Unlock()
	}
}

// Verify gates chat for identities that have not been verified yet.
func (c *Conversation) Verify() error {
	if id := c.Identity(); id != nil && !id.Verified {
		return ErrVerificationRequired
	}
	return nil
}

// Submit runs one turn in the active session. See SubmitTo.
func (c *Conversation) Submit(ctx context.Context, text string) (Turn, error) {
	return c.SubmitTo(ctx, "", text)
}

// SubmitTo runs one turn in sessionID, or in the active session when
// sessionID is empty: the user message is appended first, then the text is
// screened, the model is called with the composed prompt, and the reply is
// screened before it is appended. Both messages go to the session the turn
// started in; a reply whose session was removed meanwhile is dropped.
func (c *Conversation) SubmitTo(ctx context.Context, sessionID, text string) (Turn, error) {
	if err := c.Verify(); err != nil {
		return Turn{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Turn{}, ErrTurnInFlight
	}
	c.inFlight = true
	c.state = Idle
	c.escalation = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	sessionID, err := c.ensureSession(ctx, sessionID)
	if err != nil {
		return Turn{}, err
	}

	history := c.log.History(c.historyLimit)
	userMsg := c.clock.NewMessage(chat.RoleUser, text)
	if err := c.log.AppendTo(ctx, sessionID, userMsg); err != nil {
		return Turn{}, err
	}
	turn := Turn{SessionID: sessionID, User: userMsg}

	if finding, hit := c.detector.Detect(text); hit {
		return c.trip(turn, sessionID, SourceUser, finding), nil
	}

	c.setState(AwaitingModelReply)

	reply, err := c.model.Send(ctx, ai.Compose(text, c.loadProfile(ctx)), history)
	if err != nil {
		c.setState(Idle)
		log.Printf("[counsel] model call for session %s failed: %v", sessionID, err)
		turn.State = Idle
		return turn, fmt.Errorf("%w: %v", ErrModelCallFailed, err)
	}

	if finding, hit := c.detector.Detect(reply); hit {
		return c.trip(turn, sessionID, SourceModel, finding), nil
	}

	replyMsg := c.clock.NewMessage(chat.RoleModel, reply)
	if err := c.log.AppendTo(ctx, sessionID, replyMsg); err != nil {
		c.setState(Idle)
		turn.State = Idle
		if errors.Is(err, chatsvc.ErrSessionNotFound) {
			log.Printf("[counsel] session %s removed during the turn, reply dropped", sessionID)
		}
		return turn, err
	}

	c.setState(Idle)
	turn.State = Idle
	turn.Reply = &replyMsg
	return turn, nil
}

// ensureSession selects id (or keeps the active session when id is empty,
// creating one if there is none) and returns the session the log has open.
func (c *Conversation) ensureSession(ctx context.Context, id string) (string, error) {
	if id != "" {
		if err := c.dir.Select(id); err != nil {
			return "", err
		}
	} else if c.dir.Active() == "" {
		if _, err := c.dir.Create(ctx); err != nil {
			return "", err
		}
	}
	if err := c.activate(ctx); err != nil {
		return "", err
	}
	sessionID := c.log.SessionID()
	if sessionID == "" {
		return "", chatsvc.ErrSessionNotFound
	}
	return sessionID, nil
}

func (c *Conversation) loadProfile(ctx context.Context) *profile.UserProfile {
	if c.profiles == nil {
		return nil
	}
	p, err := c.profiles.Get(ctx)
	if err != nil {
		log.Printf("[counsel] profile unavailable: %v", err)
		return nil
	}
	return p
}

func (c *Conversation) trip(turn Turn, sessionID string, source Source, finding safety.Finding) Turn {
	escalation := Escalation{SessionID: sessionID, Source: source, Category: finding.Category}

	c.mu.Lock()
	c.state = SafetyTripped
	c.escalation = &escalation
	fns := make([]func(Escalation), 0, len(c.escalations))
	for _, fn := range c.escalations {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	log.Printf("[counsel] safety tripped in session %s by %s (%s)", sessionID, source, finding.Category)
	for _, fn := range fns {
		fn(escalation)
	}

	turn.State = SafetyTripped
	turn.Escalation = &escalation
	return turn
}

func (c *Conversation) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Conversation) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// NewSession creates a session and switches to it.
func (c *Conversation) NewSession(ctx context.Context) (string, error) {
	if c.busy() {
		return "", ErrTurnInFlight
	}
	id, err := c.dir.Create(ctx)
	if err != nil {
		return "", err
	}
	if err := c.SwitchSession(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// SwitchSession selects id and opens its log. Playback is reset. Switching
// away while a reply is pending fails with ErrTurnInFlight.
func (c *Conversation) SwitchSession(ctx context.Context, id string) error {
	if id != c.log.SessionID() && c.busy() {
		return ErrTurnInFlight
	}
	if err := c.dir.Select(id); err != nil {
		return err
	}
	return c.activate(ctx)
}

// RemoveSession deletes id and follows the reselection.
func (c *Conversation) RemoveSession(ctx context.Context, id string) error {
	if id == c.log.SessionID() && c.busy() {
		return ErrTurnInFlight
	}
	if err := c.dir.Remove(ctx, id); err != nil {
		return err
	}
	return c.activate(ctx)
}

// Close stops subscriptions and playback.
func (c *Conversation) Close() {
	c.cancel()

	c.switchMu.Lock()
	c.log.Close()
	c.switchMu.Unlock()

	c.mu.Lock()
	c.playback = Playback{}
	stop := c.stopDir
	c.stopDir = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
}
