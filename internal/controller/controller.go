package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"feveroracle-chatbot/internal/core"
	"feveroracle-chatbot/pkg"
)

// Authority is the remote dialogue backend.  While it is reachable it owns
// the conversation; the controller applies its responses verbatim and never
// runs the local engine in parallel.
type Authority interface {
	StartSession(ctx context.Context) (*pkg.StartSessionResponse, error)
	SubmitAnswer(ctx context.Context, req pkg.MessageRequest) (*pkg.MessageResponse, error)
}

// ReportSink receives the finished analysis for persistence.  Submission is
// best-effort: a sink failure never affects the completed conversation.
type ReportSink interface {
	SubmitReport(ctx context.Context, req pkg.ReportRequest) error
}

// State of the controller's own lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateActive    State = "active"
	StateCompleted State = "completed"
)

// Callbacks are the upward interface to the hosting UI.  All callbacks are
// optional and are invoked outside the controller's lock.
type Callbacks struct {
	// OnQuestion presents the next question.  A non-empty reprompt means
	// the previous answer was rejected and the same step is asked again;
	// the reprompt text is the correction to show.
	OnQuestion func(q pkg.Question, reprompt string)
	// OnAnalysis delivers the terminal assessment.
	OnAnalysis func(a pkg.Analysis)
	// OnRestart fires when the conversation is discarded for a fresh one.
	OnRestart func()
}

// ErrBusy is returned when a call arrives while another one is in flight.
// Conversations are strictly serialized per session.
var ErrBusy = errors.New("controller: another call is in flight")

// ErrNotStarted is returned when an answer arrives before Start.
var ErrNotStarted = errors.New("controller: session not started")

const defaultTimeout = 5 * time.Second

// Controller orchestrates one conversation end to end.  It opens a
// remote-authoritative session when the backend is reachable and degrades
// in place to the embedded engine otherwise; the user never sees the
// difference beyond the answers being evaluated locally.
type Controller struct {
	mu      sync.Mutex
	state   State
	busy    bool
	gen     int // bumped on restart; in-flight results from older generations are dropped
	session *pkg.Session

	engine    *core.Engine
	authority Authority
	sink      ReportSink
	cb        Callbacks
	timeout   time.Duration
	log       zerolog.Logger
}

// New constructs a controller.  authority and sink may be nil, which pins
// the controller to local mode and disables report persistence.
func New(engine *core.Engine, authority Authority, sink ReportSink, cb Callbacks, timeout time.Duration, log zerolog.Logger) *Controller {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Controller{
		state:     StateIdle,
		engine:    engine,
		authority: authority,
		sink:      sink,
		cb:        cb,
		timeout:   timeout,
		log:       log,
	}
}

// State returns the controller's lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a snapshot of the current session, or the zero value when
// no conversation is open.
func (c *Controller) Session() pkg.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return pkg.Session{}
	}
	snap := *c.session
	snap.Answers = make(map[string]any, len(c.session.Answers))
	for k, v := range c.session.Answers {
		snap.Answers[k] = v
	}
	return snap
}

// Start opens a new session.  It tries the remote backend first; on any
// failure it silently seeds a local session at the start step.  The first
// question is delivered through OnQuestion either way.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.state = StateStarting
	gen := c.gen
	authority := c.authority
	c.mu.Unlock()

	var session *pkg.Session
	var first pkg.Question

	if authority != nil {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := authority.StartSession(callCtx)
		cancel()
		switch {
		case err != nil:
			c.log.Info().Err(err).Msg("remote session unavailable, starting locally")
		case resp == nil || resp.NextQuestion == nil:
			c.log.Info().Msg("remote start response incomplete, starting locally")
		default:
			session = &pkg.Session{
				ID:          resp.SessionID,
				CurrentStep: resp.NextQuestion.Key,
				Answers:     map[string]any{},
			}
			first = *resp.NextQuestion
		}
	}
	if session == nil {
		session = &pkg.Session{
			ID:          pkg.LocalSessionPrefix + uuid.NewString(),
			CurrentStep: pkg.StepStart,
			Answers:     map[string]any{},
		}
		first = c.engine.Catalog().Start()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.session = session
	c.state = StateActive
	c.busy = false
	c.mu.Unlock()

	if c.cb.OnQuestion != nil {
		c.cb.OnQuestion(first, "")
	}
	return nil
}

// Submit feeds one user answer into the conversation.  Remote sessions
// defer to the backend; a failed remote call degrades the session to the
// local engine in place and evaluates the same answer there.  Submitting
// after completion is a silent no-op.
func (c *Controller) Submit(ctx context.Context, text string) error {
	c.mu.Lock()
	switch {
	case c.busy:
		c.mu.Unlock()
		return ErrBusy
	case c.state == StateCompleted:
		c.mu.Unlock()
		return nil
	case c.state != StateActive:
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.busy = true
	gen := c.gen
	session := c.session
	authority := c.authority
	c.mu.Unlock()

	var (
		question *pkg.Question
		reprompt string
		analysis *pkg.Analysis
	)

	if !session.IsLocal() && authority != nil {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := authority.SubmitAnswer(callCtx, pkg.MessageRequest{
			SessionID:   session.ID,
			Message:     text,
			CurrentStep: session.CurrentStep,
			Answers:     session.Answers,
		})
		cancel()
		if err == nil {
			err = applyRemote(session, resp, &question, &reprompt, &analysis)
		}
		if err != nil {
			c.log.Warn().Err(err).Str("session_id", session.ID).
				Msg("remote call failed mid-conversation, degrading to local engine")
			c.degrade(session)
			question, reprompt, analysis = c.advanceLocal(session, text)
		}
	} else {
		question, reprompt, analysis = c.advanceLocal(session, text)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.busy = false
	if analysis != nil {
		c.state = StateCompleted
	}
	c.mu.Unlock()

	if analysis != nil {
		if c.cb.OnAnalysis != nil {
			c.cb.OnAnalysis(*analysis)
		}
		c.submitReport(session, *analysis)
		return nil
	}
	if question != nil && c.cb.OnQuestion != nil {
		c.cb.OnQuestion(*question, reprompt)
	}
	return nil
}

// Restart discards the current conversation and opens a fresh session.  It
// is safe from any state, including while a submit is in flight: the stale
// result is dropped when it lands.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	c.busy = false
	c.state = StateIdle
	c.session = nil
	c.mu.Unlock()

	if c.cb.OnRestart != nil {
		c.cb.OnRestart()
	}
	return c.Start(ctx)
}

// applyRemote applies a backend response verbatim.  A response that carries
// neither a next question nor a completed analysis counts as a transport
// failure so the caller degrades to the local engine.
func applyRemote(session *pkg.Session, resp *pkg.MessageResponse, question **pkg.Question, reprompt *string, analysis **pkg.Analysis) error {
	if resp == nil {
		return errors.New("empty response")
	}
	if resp.Answers != nil {
		session.Answers = resp.Answers
	}
	if resp.Completed {
		if resp.Analysis == nil {
			return errors.New("completed response without analysis")
		}
		session.Completed = true
		session.CurrentStep = core.StepComplete
		*analysis = resp.Analysis
		return nil
	}
	if resp.NextQuestion == nil {
		return errors.New("response carries neither question nor analysis")
	}
	session.CurrentStep = resp.NextQuestion.Key
	*question = resp.NextQuestion
	*reprompt = resp.Reprompt
	return nil
}

// degrade re-tags a remote session as locally owned, keeping the remote id
// as suffix so logs can still correlate the two halves of the conversation.
func (c *Controller) degrade(session *pkg.Session) {
	if session.IsLocal() {
		return
	}
	session.ID = pkg.LocalSessionPrefix + session.ID
}

// advanceLocal runs the embedded engine.  A protocol mismatch (the remote
// left us on a step the local catalog does not know) restarts the dialogue
// at the start step instead of aborting the conversation.
func (c *Controller) advanceLocal(session *pkg.Session, text string) (*pkg.Question, string, *pkg.Analysis) {
	res, err := c.engine.Advance(session, text)
	if err != nil {
		var mismatch *core.ProtocolMismatchError
		if errors.As(err, &mismatch) {
			c.log.Warn().Str("session_id", session.ID).Str("step", mismatch.Step).
				Msg("protocol mismatch, restarting local dialogue at start")
			session.CurrentStep = pkg.StepStart
			session.Answers = map[string]any{}
			q := c.engine.Catalog().Start()
			return &q, "", nil
		}
		// The engine has no other error condition; treat anything else as a
		// mismatch-style reset rather than surfacing a fault to the user.
		c.log.Error().Err(err).Str("session_id", session.ID).Msg("unexpected engine failure, restarting dialogue")
		session.CurrentStep = pkg.StepStart
		session.Answers = map[string]any{}
		q := c.engine.Catalog().Start()
		return &q, "", nil
	}
	return res.Question, res.Reprompt, res.Analysis
}

// submitReport flushes the finished analysis to the sink without blocking
// the completion signal.  Failures are logged and swallowed.
func (c *Controller) submitReport(session *pkg.Session, a pkg.Analysis) {
	if c.sink == nil {
		return
	}
	req := pkg.ReportRequest{
		SessionID: session.ID,
		Answers:   session.Answers,
		Analysis:  a,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.sink.SubmitReport(ctx, req); err != nil {
			c.log.Warn().Err(err).Str("session_id", req.SessionID).Msg("report submission failed")
		}
	}()
}
