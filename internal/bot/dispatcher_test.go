package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"derogation-bot/internal/common/errors"
	"derogation-bot/internal/common/logger"
	"derogation-bot/internal/dialogue"
	"derogation-bot/internal/reasons"
	"derogation-bot/internal/session"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
	generateattestation "derogation-bot/internal/workers/generate-attestation"
)

// ==========================
// Mocks
// ==========================

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Execute(ctx context.Context, input *generateattestation.Input) *generateattestation.Output {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*generateattestation.Output)
}

type recordingReplier struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingReplier) SendText(_ context.Context, _ string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recordingReplier) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

type failingStore struct {
	session.Store
	getErr   error
	mergeErr error
}

func (f *failingStore) Get(ctx context.Context, id string) (dialogue.State, error) {
	if f.getErr != nil {
		return dialogue.State{}, f.getErr
	}
	return f.Store.Get(ctx, id)
}

func (f *failingStore) Merge(ctx context.Context, id string, patch []byte) error {
	if f.mergeErr != nil {
		return f.mergeErr
	}
	return f.Store.Merge(ctx, id, patch)
}

// ==========================
// Test Helper Functions
// ==========================

const sessionID = "telegram:4242"

func completeDetails() dialogue.Details {
	return dialogue.Details{
		dialogue.FirstName:    "Jane",
		dialogue.LastName:     "Doe",
		dialogue.Birthday:     "01/02/1990",
		dialogue.PlaceOfBirth: "Paris",
		dialogue.Address:      "1 Rue X",
		dialogue.City:         "Paris",
		dialogue.ZipCode:      "75000",
	}
}

func setupDispatcher(t *testing.T) (*Dispatcher, session.Store, *MockGenerator, *recordingReplier) {
	store := session.NewMemoryStore()
	gen := &MockGenerator{}
	t.Cleanup(func() { gen.AssertExpectations(t) })
	return NewDispatcher(store, gen, logger.NewTestLogger(t)), store, gen, &recordingReplier{}
}

func text(s string) Message {
	return Message{
		SessionID: sessionID,
		Channel:   deliverdocument.ChannelTelegram,
		Recipient: "4242",
		Text:      s,
		IsText:    true,
	}
}

func seed(t *testing.T, store session.Store, st dialogue.State) {
	require.NoError(t, store.Set(context.Background(), sessionID, st))
}

func stateOf(t *testing.T, store session.Store) dialogue.State {
	st, err := store.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return st
}

// ==========================
// Routing
// ==========================

func TestClassify(t *testing.T) {
	idle := dialogue.Empty()
	awaiting := dialogue.State{Details: dialogue.Details{}, AskingForDetails: dialogue.City}

	tests := []struct {
		name  string
		state dialogue.State
		msg   Message
		want  Route
	}{
		{"greeting", idle, text("hi"), RouteGreeting},
		{"greeting uppercase", idle, text("HELLO there"), RouteGreeting},
		{"fill", idle, text("Fill"), RouteFill},
		{"derogation please", idle, text("please travail"), RouteDerogation},
		{"derogation accented", idle, text("Dérogation sport"), RouteDerogation},
		{"gimme", idle, text("gimme"), RouteDerogation},
		{"reset", idle, text("reset"), RouteReset},
		{"forget", idle, text("Forget"), RouteReset},
		{"unknown word", idle, text("bonjour"), RouteNotUnderstood},
		{"empty text", idle, text(""), RouteNotUnderstood},
		{"cancel while idle", idle, text("cancel"), RouteNotUnderstood},
		{"non text", idle, Message{SessionID: sessionID}, RouteNotUnderstood},
		{"trigger word while awaiting", awaiting, text("hi"), RouteDialogue},
		{"reset while awaiting", awaiting, text("reset"), RouteDialogue},
		{"non text while awaiting", awaiting, Message{SessionID: sessionID}, RouteNotUnderstood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.state, tt.msg))
		})
	}
}

// ==========================
// Static Replies
// ==========================

func TestHandle_Greeting(t *testing.T) {
	d, _, _, r := setupDispatcher(t)

	require.NoError(t, d.Handle(context.Background(), text("Hi"), r))

	sent := r.take()
	require.Len(t, sent, 4)
	assert.Equal(t, MsgGreeting, sent[0])
	assert.Equal(t,
		"For a derogation, say one of 'please', 'gimme', 'derogation' followed by one of the following reason:\n"+
			"travail, achats, sante, famille, handicap, sport_animaux, sport, animaux, convocation, missions, enfants",
		sent[1])
	assert.Equal(t, "To make me forget everything I know about you, say one of 'reset', 'forget'", sent[2])
	assert.Equal(t, "Otherwise, say one of 'hi', 'hello'", sent[3])
}

func TestHandle_NotUnderstood(t *testing.T) {
	d, _, _, r := setupDispatcher(t)

	require.NoError(t, d.Handle(context.Background(), text("what?"), r))
	sent := r.take()
	require.Len(t, sent, 4)
	assert.Equal(t, MsgNotUnderstood, sent[0])

	require.NoError(t, d.Handle(context.Background(), Message{SessionID: sessionID, Recipient: "4242"}, r))
	assert.Equal(t, MsgNotUnderstood, r.take()[0])
}

func TestSayTxt(t *testing.T) {
	assert.Equal(t, "say 'fill'", sayTxt(FillTriggers))
	assert.Equal(t, "say one of 'hi', 'hello'", sayTxt(GreetingTriggers))
	assert.Equal(t, dialogue.MsgIncomplete, fmt.Sprintf("Looks like I am missing some details from you, %s to complete them", sayTxt(FillTriggers)))
}

// ==========================
// Dialogue
// ==========================

func TestHandle_FillConversation(t *testing.T) {
	d, store, _, r := setupDispatcher(t)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, text("fill"), r))
	assert.Equal(t, []string{dialogue.MsgIntro, "What is your First Name?"}, r.take())
	assert.Equal(t, dialogue.FirstName, stateOf(t, store).AskingForDetails)

	answers := []string{"Jane", "Doe", "01/02/1990", "Paris", "1 Rue X", "Paris", "75000"}
	for _, a := range answers {
		require.NoError(t, d.Handle(ctx, text(a), r))
	}

	st := stateOf(t, store)
	assert.True(t, st.IsValidDetails())
	assert.False(t, st.Awaiting())
	assert.Equal(t, completeDetails(), st.Details)
	sent := r.take()
	assert.Equal(t, dialogue.MsgAllSet, sent[len(sent)-1])
}

func TestHandle_TriggerWordsAreAnswersMidDialogue(t *testing.T) {
	d, store, _, r := setupDispatcher(t)
	seed(t, store, dialogue.State{Details: dialogue.Details{}, AskingForDetails: dialogue.FirstName})

	require.NoError(t, d.Handle(context.Background(), text("hello"), r))

	st := stateOf(t, store)
	assert.Equal(t, "hello", st.Details[dialogue.FirstName])
	assert.Equal(t, dialogue.LastName, st.AskingForDetails)
	assert.Equal(t, []string{"What is your Last Name?"}, r.take())
}

func TestHandle_CancelMidDialogue(t *testing.T) {
	d, store, _, r := setupDispatcher(t)
	seed(t, store, dialogue.State{
		Details:          dialogue.Details{dialogue.FirstName: "Jane", dialogue.LastName: "Doe"},
		AskingForDetails: dialogue.Birthday,
	})

	require.NoError(t, d.Handle(context.Background(), text("CANCEL"), r))

	st := stateOf(t, store)
	assert.Empty(t, st.Details)
	assert.False(t, st.Awaiting())
	assert.Equal(t, []string{dialogue.MsgCancelled}, r.take())
}

func TestHandle_Reset(t *testing.T) {
	d, store, _, r := setupDispatcher(t)
	seed(t, store, dialogue.State{Details: completeDetails()})

	require.NoError(t, d.Handle(context.Background(), text("forget"), r))

	st := stateOf(t, store)
	assert.Empty(t, st.Details)
	assert.False(t, st.Awaiting())
	assert.Equal(t, []string{dialogue.MsgForgotten}, r.take())
}

// ==========================
// Derogation Requests
// ==========================

func TestHandle_Derogation_IncompleteDetailsNeverGenerates(t *testing.T) {
	d, store, gen, r := setupDispatcher(t)
	details := completeDetails()
	delete(details, dialogue.ZipCode)
	seed(t, store, dialogue.State{Details: details})

	require.NoError(t, d.Handle(context.Background(), text("please travail"), r))

	assert.Equal(t, []string{dialogue.MsgIncomplete}, r.take())
	gen.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestHandle_Derogation_UnknownReasonNeverGenerates(t *testing.T) {
	d, store, gen, r := setupDispatcher(t)
	seed(t, store, dialogue.State{Details: completeDetails()})

	require.NoError(t, d.Handle(context.Background(), text("please vacances"), r))

	assert.Equal(t, []string{
		"This does not seems like a valid reasons. Possible reasons are: travail, achats, sante, famille, handicap, sport_animaux, sport, animaux, convocation, missions, enfants",
	}, r.take())
	gen.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestHandle_Derogation_MissingReason(t *testing.T) {
	d, store, gen, r := setupDispatcher(t)
	seed(t, store, dialogue.State{Details: completeDetails()})

	require.NoError(t, d.Handle(context.Background(), text("Gimme"), r))

	sent := r.take()
	require.Len(t, sent, 2)
	assert.Equal(t, "You need to call this followed by the reason, example: Gimme travail", sent[0])
	assert.Contains(t, sent[0], reasons.Example())
	assert.Contains(t, sent[1], "Possible reasons are: travail, achats")
	gen.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestHandle_Derogation_Generates(t *testing.T) {
	d, store, gen, r := setupDispatcher(t)
	seed(t, store, dialogue.State{Details: completeDetails()})

	gen.On("Execute", mock.Anything, mock.MatchedBy(func(in *generateattestation.Input) bool {
		return in.Reason == reasons.Travel &&
			in.SessionID == sessionID &&
			in.Channel == deliverdocument.ChannelTelegram &&
			in.Recipient == "4242" &&
			assert.ObjectsAreEqual(completeDetails(), in.Details)
	})).Return(&generateattestation.Output{Status: generateattestation.StatusDelivered}).Once()

	require.NoError(t, d.Handle(context.Background(), text("please travail"), r))

	assert.Equal(t, []string{MsgWorking}, r.take())
	assert.Equal(t, completeDetails(), stateOf(t, store).Details)
}

func TestHandle_Derogation_NormalizesReason(t *testing.T) {
	tests := []struct {
		text string
		want reasons.Code
	}{
		{"please Sport", reasons.SportAnimal},
		{"derogation ANIMAUX", reasons.SportAnimal},
		{"gimme santé", reasons.Health},
		{"please   Sport_Animaux  ", reasons.SportAnimal},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d, store, gen, r := setupDispatcher(t)
			seed(t, store, dialogue.State{Details: completeDetails()})
			gen.On("Execute", mock.Anything, mock.MatchedBy(func(in *generateattestation.Input) bool {
				return in.Reason == tt.want
			})).Return(&generateattestation.Output{Status: generateattestation.StatusDelivered}).Once()

			require.NoError(t, d.Handle(context.Background(), text(tt.text), r))
		})
	}
}

func TestHandle_Derogation_RelaysFailureMessage(t *testing.T) {
	d, store, gen, r := setupDispatcher(t)
	seed(t, store, dialogue.State{Details: completeDetails()})
	gen.On("Execute", mock.Anything, mock.Anything).Return(&generateattestation.Output{
		Status:  generateattestation.StatusNoDownload,
		Message: generateattestation.MsgNoDownload,
	}).Once()

	require.NoError(t, d.Handle(context.Background(), text("please achats"), r))

	assert.Equal(t, []string{MsgWorking, generateattestation.MsgNoDownload}, r.take())
}

func TestHandle_Derogation_GenerationOutlivesRequestContext(t *testing.T) {
	d, store, gen, r := setupDispatcher(t)
	seed(t, store, dialogue.State{Details: completeDetails()})

	ctx, cancel := context.WithCancel(context.Background())
	gen.On("Execute", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		cancel()
		assert.NoError(t, args.Get(0).(context.Context).Err())
	}).Return(&generateattestation.Output{Status: generateattestation.StatusDelivered}).Once()

	require.NoError(t, d.Handle(ctx, text("please travail"), r))
}

// ==========================
// Session Store Failures
// ==========================

func TestHandle_SessionLoadFailure(t *testing.T) {
	store := &failingStore{Store: session.NewMemoryStore(), getErr: fmt.Errorf("connection refused")}
	d := NewDispatcher(store, &MockGenerator{}, logger.NewTestLogger(t))
	r := &recordingReplier{}

	err := d.Handle(context.Background(), text("hi"), r)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSessionStoreFailed))
	assert.Equal(t, []string{MsgUnexpected}, r.take())
}

func TestHandle_SessionSaveFailure(t *testing.T) {
	store := &failingStore{Store: session.NewMemoryStore(), mergeErr: fmt.Errorf("READONLY")}
	d := NewDispatcher(store, &MockGenerator{}, logger.NewTestLogger(t))
	r := &recordingReplier{}

	err := d.Handle(context.Background(), text("fill"), r)

	require.Error(t, err)
	sent := r.take()
	assert.Equal(t, MsgUnexpected, sent[len(sent)-1])
}

// ==========================
// Concurrency
// ==========================

func TestHandle_SerializesOneSession(t *testing.T) {
	d, store, _, r := setupDispatcher(t)
	ctx := context.Background()
	require.NoError(t, d.Handle(ctx, text("fill"), r))

	answers := []string{"Jane", "Doe", "01/02/1990", "Paris", "1 Rue X", "Paris", "75000"}
	var wg sync.WaitGroup
	for _, a := range answers {
		wg.Add(1)
		go func(a string) {
			defer wg.Done()
			assert.NoError(t, d.Handle(ctx, text(a), r))
		}(a)
	}
	wg.Wait()

	st := stateOf(t, store)
	assert.True(t, st.IsValidDetails(), "every answer must land in its own field")
	assert.Len(t, st.Details, len(dialogue.Fields))
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different keys must not block each other")
	}

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("same key acquired twice")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	<-released

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
