package music_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/ritmatiza/core/music"
	"github.com/trezcool/ritmatiza/core/user"
	"github.com/trezcool/ritmatiza/storage/database/dummy"
	"github.com/trezcool/ritmatiza/tests"
)

var now = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type fakeProvider struct {
	sync.Mutex
	refreshFn  func(refreshToken string) (music.Token, error)
	exchangeFn func(code, redirectURI string) (music.Token, error)
	profileFn  func(accessToken string) (music.Profile, error)
	addFn      func(trackURI, playlistID, accessToken string) (bool, error)
	removeFn   func(trackURI, playlistID, accessToken string) (bool, error)
	searchFn   func(query, accessToken string, limit int) ([]music.Track, error)

	refreshCalls  int
	exchangeCalls int
	addCalls      []string
	removeCalls   []string
}

var _ music.Provider = (*fakeProvider)(nil)

func (p *fakeProvider) AuthURL(scope, state string) string {
	return "https://accounts.test/authorize?scope=" + scope + "&state=" + state
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, redirectURI string) (music.Token, error) {
	p.Lock()
	p.exchangeCalls++
	p.Unlock()
	if p.exchangeFn == nil {
		return music.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, ExpiresIn: 3600}, nil
	}
	return p.exchangeFn(code, redirectURI)
}

func (p *fakeProvider) Refresh(_ context.Context, refreshToken string) (music.Token, error) {
	p.Lock()
	p.refreshCalls++
	p.Unlock()
	if p.refreshFn == nil {
		return music.Token{AccessToken: "refreshed", RefreshToken: "new-refresh", ExpiresIn: 3600}, nil
	}
	return p.refreshFn(refreshToken)
}

func (p *fakeProvider) FetchProfile(_ context.Context, accessToken string) (music.Profile, error) {
	if p.profileFn == nil {
		return music.Profile{ID: "spotify-admin", DisplayName: "Admin"}, nil
	}
	return p.profileFn(accessToken)
}

func (p *fakeProvider) Search(_ context.Context, query, accessToken string, limit int) ([]music.Track, error) {
	if p.searchFn == nil {
		return nil, nil
	}
	return p.searchFn(query, accessToken, limit)
}

func (p *fakeProvider) AddTrack(_ context.Context, trackURI, playlistID, accessToken string) (bool, error) {
	p.Lock()
	p.addCalls = append(p.addCalls, trackURI)
	p.Unlock()
	if p.addFn == nil {
		return true, nil
	}
	return p.addFn(trackURI, playlistID, accessToken)
}

func (p *fakeProvider) RemoveTrack(_ context.Context, trackURI, playlistID, accessToken string) (bool, error) {
	p.Lock()
	p.removeCalls = append(p.removeCalls, trackURI)
	p.Unlock()
	if p.removeFn == nil {
		return true, nil
	}
	return p.removeFn(trackURI, playlistID, accessToken)
}

func (p *fakeProvider) ClientCredentialsToken(context.Context) (string, error) {
	return "app-token", nil
}

type fakeStates struct {
	sync.Mutex
	states map[int]string
}

var _ music.StateStore = (*fakeStates)(nil)

func newFakeStates() *fakeStates { return &fakeStates{states: make(map[int]string)} }

func (s *fakeStates) Put(_ context.Context, adminID int, state string, _ time.Duration) error {
	s.Lock()
	defer s.Unlock()
	s.states[adminID] = state
	return nil
}

func (s *fakeStates) Pop(_ context.Context, adminID int) (string, bool, error) {
	s.Lock()
	defer s.Unlock()
	state, ok := s.states[adminID]
	delete(s.states, adminID)
	return state, ok, nil
}

// recordLogger keeps every message, by level.
type recordLogger struct {
	sync.Mutex
	msgs map[string][]string
}

func newRecordLogger() *recordLogger { return &recordLogger{msgs: make(map[string][]string)} }

func (l *recordLogger) log(level, msg string) {
	l.Lock()
	defer l.Unlock()
	l.msgs[level] = append(l.msgs[level], msg)
}

func (l *recordLogger) count(level string) int {
	l.Lock()
	defer l.Unlock()
	return len(l.msgs[level])
}

func (l *recordLogger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *recordLogger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *recordLogger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *recordLogger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *recordLogger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

type fixture struct {
	users    user.Repository
	usrSvc   *user.Service
	repo     music.Repository
	provider *fakeProvider
	states   *fakeStates
	logger   *recordLogger
	tokens   *music.TokenManager
	seq      int
}

func setup(t *testing.T) *fixture {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	f := &fixture{
		users:    dummydb.NewUserRepository(db),
		repo:     dummydb.NewMusicRepository(db),
		provider: &fakeProvider{},
		states:   newFakeStates(),
		logger:   newRecordLogger(),
	}
	f.usrSvc = user.NewService(f.users, clock)
	f.tokens = music.NewTokenManager(f.usrSvc, f.provider, f.logger, clock)
	return f
}

func (f *fixture) service(opts ...music.Options) *music.Service {
	o := music.Options{PlaylistID: "playlist-1"}
	if len(opts) > 0 {
		o = opts[0]
	}
	return music.NewService(f.repo, f.usrSvc, f.tokens, f.provider, f.logger, o, clock)
}

func (f *fixture) handshake() *music.Handshake {
	return music.NewHandshake(f.usrSvc, f.states, f.tokens, f.provider, f.logger, "https://app.test/callback")
}

func (f *fixture) createUser(t *testing.T, role user.Role, points int) user.User {
	f.seq++
	return testutil.CreateUser(t, f.users, string(role), fmt.Sprintf("user%d@test.test", f.seq), role, points, nil, now)
}

// connectAdmin stores credentials valid for another hour.
func (f *fixture) connectAdmin(t *testing.T, admin user.User) {
	err := f.users.SetSpotifyCredentials(context.Background(), admin.ID, user.SpotifyCredentials{
		AccessToken:  "admin-access",
		RefreshToken: "admin-refresh",
		ExpiresAt:    now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("connectAdmin() failed: %v", err)
	}
}

func (f *fixture) createSuggestion(t *testing.T, requester user.User, trackID string, status ...music.SuggestionStatus) music.Suggestion {
	st := music.SuggestionPending
	if len(status) > 0 {
		st = status[0]
	}
	s, err := f.repo.CreateSuggestion(context.Background(), music.Suggestion{
		TrackID:     trackID,
		Title:       "Title " + trackID,
		Artist:      "Artist",
		RequestedBy: requester.ID,
		Status:      st,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("createSuggestion() failed: %v", err)
	}
	return s
}

func (f *fixture) points(t *testing.T, id int) int {
	usr, err := f.users.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("points() failed: %v", err)
	}
	return usr.Points
}
