package chat

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poem-tavern/backend/internal/client/api"
	"github.com/zhouzirui/poem-tavern/backend/internal/config"
	"github.com/zhouzirui/poem-tavern/backend/internal/handler"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/chat"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/poem"
	poemsvc "github.com/zhouzirui/poem-tavern/backend/internal/service/poem"
)

// gatedFetcher 阻塞每个请求，直到测试放行
type gatedFetcher struct {
	mu      sync.Mutex
	topics  []string
	release chan struct{}
	text    string
	err     error
}

func newGatedFetcher(text string, err error) *gatedFetcher {
	return &gatedFetcher{release: make(chan struct{}), text: text, err: err}
}

func (f *gatedFetcher) GeneratePoem(ctx context.Context, topic string) (string, error) {
	f.mu.Lock()
	f.topics = append(f.topics, topic)
	f.mu.Unlock()
	<-f.release
	return f.text, f.err
}

func (f *gatedFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...)
}

type fakeReciter struct {
	toggles []chat.MessageID
	active  chat.MessageID
	on      bool
	closed  bool
}

func (r *fakeReciter) Toggle(id chat.MessageID, _ string) error {
	r.toggles = append(r.toggles, id)
	if r.on && r.active == id {
		r.on = false
		return nil
	}
	r.active, r.on = id, true
	return nil
}

func (r *fakeReciter) Active() (chat.MessageID, bool) { return r.active, r.on }

func (r *fakeReciter) Close() {
	r.closed = true
	r.on = false
}

func TestNewSessionSeedsWelcome(t *testing.T) {
	s := NewSession(newGatedFetcher("", nil), Options{Welcome: "Hi, I'm a poet."})

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi, I'm a poet.", msgs[0].Text)
	assert.Equal(t, chat.SenderBot, msgs[0].Sender)
	assert.Equal(t, msgs[0].ID, s.WelcomeID())

	awaiting, _ := s.Awaiting()
	assert.False(t, awaiting)
}

func TestSubmitSuccessAppendsPoem(t *testing.T) {
	fetcher := newGatedFetcher("Line1\nLine2", nil)
	s := NewSession(fetcher, Options{})

	require.True(t, s.Submit(context.Background(), "  sunset "))

	awaiting, topic := s.Awaiting()
	assert.True(t, awaiting)
	assert.Equal(t, "  sunset ", topic)

	close(fetcher.release)
	s.Wait()

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, chat.SenderUser, msgs[1].Sender)
	assert.Equal(t, "  sunset ", msgs[1].Text)
	assert.Equal(t, chat.SenderBot, msgs[2].Sender)
	assert.Equal(t, "Line1\nLine2", msgs[2].Text)
	assert.Less(t, msgs[1].ID, msgs[2].ID)

	awaiting, _ = s.Awaiting()
	assert.False(t, awaiting)
}

func TestSubmitWhileAwaitingIsNoop(t *testing.T) {
	fetcher := newGatedFetcher("poem", nil)
	s := NewSession(fetcher, Options{})

	require.True(t, s.Submit(context.Background(), "rain"))
	before := len(s.Messages())

	assert.False(t, s.Submit(context.Background(), "snow"))
	assert.Len(t, s.Messages(), before)

	close(fetcher.release)
	s.Wait()
	assert.Equal(t, []string{"rain"}, fetcher.calls())
}

func TestSubmitBlankTopicIsNoop(t *testing.T) {
	fetcher := newGatedFetcher("poem", nil)
	s := NewSession(fetcher, Options{})

	for _, topic := range []string{"", "   ", "\t\n"} {
		assert.False(t, s.Submit(context.Background(), topic))
	}
	assert.Len(t, s.Messages(), 1)
	assert.Empty(t, fetcher.calls())
}

func TestSubmitFailureAppendsApology(t *testing.T) {
	fetcher := newGatedFetcher("", &api.StatusError{StatusCode: 502, Kind: poem.KindForbidden, Message: "API access forbidden"})
	close(fetcher.release)
	s := NewSession(fetcher, Options{})

	require.True(t, s.Submit(context.Background(), "ocean"))
	s.Wait()

	msgs := s.Messages()
	assert.Equal(t, Apology, msgs[len(msgs)-1].Text)

	// 失败后可以再次提交
	assert.True(t, s.Submit(context.Background(), "ocean"))
	s.Wait()
}

func TestSubmitIsDetachedFromCallerContext(t *testing.T) {
	fetcher := newGatedFetcher("still here", nil)
	s := NewSession(fetcher, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.Submit(ctx, "moon"))
	cancel()
	close(fetcher.release)
	s.Wait()

	msgs := s.Messages()
	assert.Equal(t, "still here", msgs[len(msgs)-1].Text)
}

func TestOnChangeFiresPerTransition(t *testing.T) {
	fetcher := newGatedFetcher("poem", nil)
	close(fetcher.release)
	s := NewSession(fetcher, Options{})

	var mu sync.Mutex
	changes := 0
	s.OnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	require.True(t, s.Submit(context.Background(), "stars"))
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, changes)
}

func TestToggleRecitationRules(t *testing.T) {
	fetcher := newGatedFetcher("a poem", nil)
	close(fetcher.release)
	reciter := &fakeReciter{}
	s := NewSession(fetcher, Options{Reciter: reciter})

	require.True(t, s.Submit(context.Background(), "wind"))
	s.Wait()
	msgs := s.Messages()
	userID, poemID := msgs[1].ID, msgs[2].ID

	assert.ErrorIs(t, s.ToggleRecitation(s.WelcomeID()), ErrNotRecitable)
	assert.ErrorIs(t, s.ToggleRecitation(userID), ErrNotRecitable)
	assert.ErrorIs(t, s.ToggleRecitation(999), ErrNotRecitable)

	require.NoError(t, s.ToggleRecitation(poemID))
	id, on := s.ActiveRecitation()
	assert.True(t, on)
	assert.Equal(t, poemID, id)

	s.Close()
	assert.True(t, reciter.closed)
	_, on = s.ActiveRecitation()
	assert.False(t, on)
}

func TestToggleRecitationWhileAwaiting(t *testing.T) {
	fetcher := newGatedFetcher("poem", nil)
	reciter := &fakeReciter{}
	s := NewSession(fetcher, Options{Reciter: reciter})

	close(fetcher.release)
	require.True(t, s.Submit(context.Background(), "first"))
	s.Wait()
	first := s.Messages()[2].ID

	fetcher.release = make(chan struct{})
	require.True(t, s.Submit(context.Background(), "second"))
	require.NoError(t, s.ToggleRecitation(first))
	awaiting, _ := s.Awaiting()
	assert.True(t, awaiting)

	close(fetcher.release)
	s.Wait()
}

func TestToggleRecitationUnavailable(t *testing.T) {
	s := NewSession(newGatedFetcher("", nil), Options{})
	assert.ErrorIs(t, s.ToggleRecitation(1), ErrRecitationUnavailable)
}

func TestMessageTimestampsUseClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 18, 45, 0, 0, time.Local)
	s := NewSession(newGatedFetcher("", nil), Options{Clock: func() time.Time { return at }})
	assert.Equal(t, "18:45", s.Messages()[0].Timestamp())
}

type upstreamStub struct {
	text string
	err  error
}

func (u upstreamStub) Name() string                                     { return "gemini" }
func (u upstreamStub) Model() string                                    { return "gemini-2.5-flash" }
func (u upstreamStub) Generate(context.Context, string) (string, error) { return u.text, u.err }

func newBackend(t *testing.T, gen poemsvc.Generator) *api.Client {
	t.Helper()
	poet := persona.Default()
	router := handler.NewRouter(handler.Dependencies{
		Config: &config.Config{Poem: config.PoemConfig{Provider: config.ProviderGemini, APIKey: "k", Model: "gemini-2.5-flash"}},
		Poem:   poemsvc.NewService(gen, poet, 0, nil),
		Poet:   poet,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return api.New(srv.URL, 5*time.Second)
}

func TestEndToEndSunset(t *testing.T) {
	client := newBackend(t, upstreamStub{text: "Line1\nLine2"})
	s := NewSession(client, Options{})

	require.True(t, s.Submit(context.Background(), "sunset"))
	s.Wait()

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	user, last := msgs[1], msgs[2]
	assert.Equal(t, chat.SenderUser, user.Sender)
	assert.Equal(t, "sunset", user.Text)
	assert.Equal(t, chat.SenderBot, last.Sender)
	assert.Equal(t, "Line1\nLine2", last.Text)

	awaiting, _ := s.Awaiting()
	assert.False(t, awaiting)
}

func TestEndToEndForbiddenShowsApology(t *testing.T) {
	client := newBackend(t, upstreamStub{err: &poem.UpstreamError{StatusCode: 403, Message: "The caller does not have permission"}})
	s := NewSession(client, Options{})

	require.True(t, s.Submit(context.Background(), "ocean"))
	s.Wait()

	msgs := s.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, Apology, last.Text)
	assert.NotContains(t, last.Text, "permission")
}

func TestEndToEndUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	s := NewSession(api.New(url, time.Second), Options{})
	require.True(t, s.Submit(context.Background(), "sunset"))
	s.Wait()

	msgs := s.Messages()
	assert.Equal(t, Apology, msgs[len(msgs)-1].Text)
}

var _ PoemFetcher = (*api.Client)(nil)

func TestFetcherErrorIsNotShown(t *testing.T) {
	fetcher := newGatedFetcher("", errors.New("dial tcp: connection refused"))
	close(fetcher.release)
	s := NewSession(fetcher, Options{})

	require.True(t, s.Submit(context.Background(), "x"))
	s.Wait()
	assert.Equal(t, Apology, s.Messages()[2].Text)
}
