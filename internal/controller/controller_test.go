package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feveroracle-chatbot/internal/core"
	"feveroracle-chatbot/pkg"
)

// fakeAuthority scripts the remote backend: canned responses, injected
// failures, and an optional gate to hold a call in flight.
type fakeAuthority struct {
	startResp *pkg.StartSessionResponse
	startErr  error

	submitResps []*pkg.MessageResponse
	submitErrs  []error
	submitCalls int
	entered     chan struct{}
	gate        chan struct{}
}

func (f *fakeAuthority) StartSession(ctx context.Context) (*pkg.StartSessionResponse, error) {
	return f.startResp, f.startErr
}

func (f *fakeAuthority) SubmitAnswer(ctx context.Context, req pkg.MessageRequest) (*pkg.MessageResponse, error) {
	if f.gate != nil {
		if f.entered != nil {
			f.entered <- struct{}{}
		}
		<-f.gate
	}
	i := f.submitCalls
	f.submitCalls++
	var err error
	if i < len(f.submitErrs) {
		err = f.submitErrs[i]
	}
	var resp *pkg.MessageResponse
	if i < len(f.submitResps) {
		resp = f.submitResps[i]
	}
	return resp, err
}

type recordingSink struct {
	got chan pkg.ReportRequest
	err error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{got: make(chan pkg.ReportRequest, 1)}
}

func (s *recordingSink) SubmitReport(ctx context.Context, req pkg.ReportRequest) error {
	s.got <- req
	return s.err
}

type recorder struct {
	questions []pkg.Question
	reprompts []string
	analyses  []pkg.Analysis
	restarts  int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnQuestion: func(q pkg.Question, reprompt string) {
			r.questions = append(r.questions, q)
			r.reprompts = append(r.reprompts, reprompt)
		},
		OnAnalysis: func(a pkg.Analysis) { r.analyses = append(r.analyses, a) },
		OnRestart:  func() { r.restarts++ },
	}
}

func (r *recorder) lastQuestion(t *testing.T) pkg.Question {
	t.Helper()
	require.NotEmpty(t, r.questions)
	return r.questions[len(r.questions)-1]
}

func newController(authority Authority, sink ReportSink, rec *recorder) *Controller {
	engine := core.NewEngine(core.DefaultCatalog())
	return New(engine, authority, sink, rec.callbacks(), time.Second, zerolog.Nop())
}

func remoteStartResp() *pkg.StartSessionResponse {
	q := core.DefaultCatalog().Start()
	return &pkg.StartSessionResponse{
		SessionID:    pkg.RemoteSessionPrefix + "abc",
		Message:      core.SessionStartedMessage,
		NextQuestion: &q,
	}
}

func TestStartFallsBackLocallyOnRemoteFailure(t *testing.T) {
	rec := &recorder{}
	auth := &fakeAuthority{startErr: errors.New("connect: timeout")}
	c := newController(auth, nil, rec)

	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, StateActive, c.State())
	sess := c.Session()
	assert.True(t, sess.IsLocal())
	assert.Equal(t, pkg.StepStart, sess.CurrentStep)
	// The user sees the identical start question the remote would have sent.
	assert.Equal(t, core.PromptStart, rec.lastQuestion(t).Prompt)
}

func TestStartUsesRemoteWhenReachable(t *testing.T) {
	rec := &recorder{}
	auth := &fakeAuthority{startResp: remoteStartResp()}
	c := newController(auth, nil, rec)

	require.NoError(t, c.Start(context.Background()))

	sess := c.Session()
	assert.False(t, sess.IsLocal())
	assert.Equal(t, pkg.RemoteSessionPrefix+"abc", sess.ID)
	assert.Equal(t, pkg.StepStart, sess.CurrentStep)
}

func TestRemoteResponsesApplyVerbatim(t *testing.T) {
	rec := &recorder{}
	durationQ, _ := core.DefaultCatalog().Lookup(core.StepFeverDuration)
	auth := &fakeAuthority{
		startResp: remoteStartResp(),
		submitResps: []*pkg.MessageResponse{{
			SessionID:    pkg.RemoteSessionPrefix + "abc",
			Message:      durationQ.Prompt,
			NextQuestion: &durationQ,
			Answers:      map[string]any{core.KeyHasFever: true},
		}},
	}
	c := newController(auth, nil, rec)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit(context.Background(), "Yes"))

	sess := c.Session()
	assert.Equal(t, core.StepFeverDuration, sess.CurrentStep)
	assert.Equal(t, true, sess.Answers[core.KeyHasFever])
	assert.Equal(t, core.StepFeverDuration, rec.lastQuestion(t).Key)
}

func TestMidConversationDegradeReachesAnalysis(t *testing.T) {
	rec := &recorder{}
	sink := newRecordingSink()
	durationQ, _ := core.DefaultCatalog().Lookup(core.StepFeverDuration)
	auth := &fakeAuthority{
		startResp: remoteStartResp(),
		submitResps: []*pkg.MessageResponse{{
			SessionID:    pkg.RemoteSessionPrefix + "abc",
			NextQuestion: &durationQ,
			Answers:      map[string]any{core.KeyHasFever: true},
		}},
		submitErrs: []error{nil, errors.New("connection reset")},
	}
	c := newController(auth, sink, rec)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit(context.Background(), "Yes"))

	// The remote dies while answering fever_duration; the controller must
	// continue locally from the step the remote last reported.
	require.NoError(t, c.Submit(context.Background(), "1-3 days"))
	sess := c.Session()
	assert.True(t, sess.IsLocal())
	assert.Equal(t, core.StepTemperature, sess.CurrentStep)
	assert.Equal(t, core.StepTemperature, rec.lastQuestion(t).Key)

	require.NoError(t, c.Submit(context.Background(), "39.5"))
	assert.Equal(t, StateCompleted, c.State())
	require.Len(t, rec.analyses, 1)
	assert.Equal(t, 75, rec.analyses[0].RiskScore)
	assert.Equal(t, pkg.RiskHigh, rec.analyses[0].RiskLevel)

	select {
	case report := <-sink.got:
		assert.Equal(t, sess.ID, report.SessionID)
		assert.Equal(t, 75, report.Analysis.RiskScore)
	case <-time.After(time.Second):
		t.Fatal("report never reached the sink")
	}
}

func TestProtocolMismatchRestartsAtStart(t *testing.T) {
	rec := &recorder{}
	unknownQ := pkg.Question{Key: "travel_history", Type: pkg.TypeYesNo, Prompt: "Have you traveled recently?"}
	auth := &fakeAuthority{
		startResp: remoteStartResp(),
		submitResps: []*pkg.MessageResponse{{
			SessionID:    pkg.RemoteSessionPrefix + "abc",
			NextQuestion: &unknownQ,
			Answers:      map[string]any{core.KeyHasFever: true},
		}},
		submitErrs: []error{nil, errors.New("gateway timeout")},
	}
	c := newController(auth, nil, rec)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit(context.Background(), "Yes"))

	// Remote left us on a step the local catalog does not know, then died.
	require.NoError(t, c.Submit(context.Background(), "yes"))

	assert.Equal(t, StateActive, c.State())
	sess := c.Session()
	assert.True(t, sess.IsLocal())
	assert.Equal(t, pkg.StepStart, sess.CurrentStep)
	assert.Empty(t, sess.Answers)
	assert.Equal(t, pkg.StepStart, rec.lastQuestion(t).Key)
}

func TestLocalOnlyScenarioNoFever(t *testing.T) {
	rec := &recorder{}
	c := newController(nil, nil, rec)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit(context.Background(), "No"))
	require.NoError(t, c.Submit(context.Background(), "No"))

	assert.Equal(t, StateCompleted, c.State())
	require.Len(t, rec.analyses, 1)
	assert.Equal(t, 20, rec.analyses[0].RiskScore)
	assert.Equal(t, core.FeverTypeNone, rec.analyses[0].SuspectedFeverType)
}

func TestRepromptSurfacesThroughCallback(t *testing.T) {
	rec := &recorder{}
	c := newController(nil, nil, rec)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit(context.Background(), "maybe"))

	assert.Equal(t, pkg.StepStart, rec.lastQuestion(t).Key)
	assert.Equal(t, core.ReaskYesNo, rec.reprompts[len(rec.reprompts)-1])
	assert.Equal(t, StateActive, c.State())
}

func TestSubmitAfterCompletionIsNoOp(t *testing.T) {
	rec := &recorder{}
	c := newController(nil, nil, rec)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit(context.Background(), "no"))
	require.NoError(t, c.Submit(context.Background(), "no"))
	require.Equal(t, StateCompleted, c.State())

	questions := len(rec.questions)
	analyses := len(rec.analyses)
	require.NoError(t, c.Submit(context.Background(), "yes"))

	assert.Equal(t, StateCompleted, c.State())
	assert.Len(t, rec.questions, questions)
	assert.Len(t, rec.analyses, analyses)
}

func TestSubmitBeforeStart(t *testing.T) {
	c := newController(nil, nil, &recorder{})
	assert.ErrorIs(t, c.Submit(context.Background(), "yes"), ErrNotStarted)
}

func TestRestartReturnsToStartWithEmptyAnswers(t *testing.T) {
	rec := &recorder{}
	c := newController(nil, nil, rec)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit(context.Background(), "yes"))
	require.NoError(t, c.Submit(context.Background(), "1-3 days"))

	require.NoError(t, c.Restart(context.Background()))
	assert.Equal(t, 1, rec.restarts)
	assert.Equal(t, StateActive, c.State())
	sess := c.Session()
	assert.Equal(t, pkg.StepStart, sess.CurrentStep)
	assert.Empty(t, sess.Answers)
	assert.Equal(t, core.PromptStart, rec.lastQuestion(t).Prompt)

	// Idempotent: restarting again lands in the same place.
	require.NoError(t, c.Restart(context.Background()))
	assert.Equal(t, StateActive, c.State())
	assert.Equal(t, pkg.StepStart, c.Session().CurrentStep)
}

func TestRestartFromCompleted(t *testing.T) {
	rec := &recorder{}
	c := newController(nil, nil, rec)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit(context.Background(), "no"))
	require.NoError(t, c.Submit(context.Background(), "no"))
	require.Equal(t, StateCompleted, c.State())

	require.NoError(t, c.Restart(context.Background()))
	assert.Equal(t, StateActive, c.State())
	assert.False(t, c.Session().Completed)
}

func TestConcurrentSubmitRejectedAsBusy(t *testing.T) {
	rec := &recorder{}
	durationQ, _ := core.DefaultCatalog().Lookup(core.StepFeverDuration)
	auth := &fakeAuthority{
		startResp: remoteStartResp(),
		submitResps: []*pkg.MessageResponse{{
			SessionID:    pkg.RemoteSessionPrefix + "abc",
			NextQuestion: &durationQ,
		}},
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	c := newController(auth, nil, rec)
	require.NoError(t, c.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "Yes") }()

	// Wait until the first submit is parked inside the authority call.
	<-auth.entered
	assert.ErrorIs(t, c.Submit(context.Background(), "again"), ErrBusy)

	close(auth.gate)
	require.NoError(t, <-done)
	assert.Equal(t, core.StepFeverDuration, c.Session().CurrentStep)
}

func TestSinkFailureDoesNotAffectCompletion(t *testing.T) {
	rec := &recorder{}
	sink := newRecordingSink()
	sink.err = errors.New("insert failed")
	c := newController(nil, sink, rec)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Submit(context.Background(), "no"))
	require.NoError(t, c.Submit(context.Background(), "yes"))

	assert.Equal(t, StateCompleted, c.State())
	require.Len(t, rec.analyses, 1)
	assert.Equal(t, 40, rec.analyses[0].RiskScore)

	select {
	case <-sink.got:
	case <-time.After(time.Second):
		t.Fatal("sink was never invoked")
	}
	assert.Equal(t, StateCompleted, c.State())
}
