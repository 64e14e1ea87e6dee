package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/ritmatiza/apps/api/echo"
	"github.com/trezcool/ritmatiza/core"
	"github.com/trezcool/ritmatiza/core/music"
	"github.com/trezcool/ritmatiza/core/task"
	"github.com/trezcool/ritmatiza/core/user"
	"github.com/trezcool/ritmatiza/services/cache"
	"github.com/trezcool/ritmatiza/services/email"
	"github.com/trezcool/ritmatiza/services/logger"
	"github.com/trezcool/ritmatiza/storage/database/dummy"
	"github.com/trezcool/ritmatiza/tests"
)

const testPassword = testutil.Password

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app       echoapi.Server
	conf      *core.Config
	usrRepo   user.Repository
	taskRepo  task.Repository
	musicRepo music.Repository
	usrSvc    *user.Service
	tokens    *music.TokenManager
	states    *cachesvc.StateStore
	provider  *fakeProvider
	seq       int
}

func setup(t *testing.T, confFn ...func(*core.Config)) *testEnv {
	conf := core.NewTestConfig()
	for _, fn := range confFn {
		fn(conf)
	}

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	env := &testEnv{
		conf:      conf,
		usrRepo:   dummydb.NewUserRepository(db),
		taskRepo:  dummydb.NewTaskRepository(db),
		musicRepo: dummydb.NewMusicRepository(db),
		states:    cachesvc.NewStateStore(cachesvc.NewMemoryStore()),
		provider:  &fakeProvider{token: "app-token"},
	}

	// set up services
	logger := logsvc.NewNopLogger()
	emailsvc.ResetSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	env.usrSvc = user.NewService(env.usrRepo)
	env.tokens = music.NewTokenManager(env.usrSvc, env.provider, logger)
	musicSvc := music.NewService(
		env.musicRepo, env.usrSvc, env.tokens, env.provider, logger,
		music.Options{PlaylistID: conf.Spotify.PlaylistID},
	)
	handshake := music.NewHandshake(env.usrSvc, env.states, env.tokens, env.provider, logger, conf.Spotify.RedirectURI)

	// set up server
	env.app = echoapi.NewServer(conf, nil /* shutdown */, &echoapi.Deps{
		Logger:    logger,
		Mailer:    mailSvc,
		UserSvc:   env.usrSvc,
		TaskSvc:   task.NewService(env.taskRepo, env.usrSvc, logger),
		MusicSvc:  musicSvc,
		Handshake: handshake,
	})
	return env
}

func (env *testEnv) createUser(t *testing.T, role user.Role, points int, teacherID ...int) user.User {
	env.seq++
	var tid *int
	if len(teacherID) > 0 {
		tid = &teacherID[0]
	}
	return testutil.CreateUser(t, env.usrRepo, fmt.Sprintf("%s %d", role, env.seq), fmt.Sprintf("user%d@test.test", env.seq), role, points, tid)
}

// connect stores valid credentials for an admin, as if the handshake had completed.
func (env *testEnv) connect(t *testing.T, admin user.User) {
	err := env.usrRepo.SetSpotifyCredentials(context.Background(), admin.ID, user.SpotifyCredentials{
		AccessToken:  "admin-access",
		RefreshToken: "admin-refresh",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("SetSpotifyCredentials() failed: %v", err)
	}
}

func (env *testEnv) getUser(t *testing.T, id int) user.User {
	usr, err := env.usrRepo.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserByID() failed: %v", err)
	}
	return usr
}

func (env *testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	env.app.ServeHTTP(rec, req)
}

type fakeProvider struct {
	sync.Mutex
	token     string
	tokenErr  error
	searchErr error
	addErr    error
	added     []string
	removed   []string
}

var _ music.Provider = (*fakeProvider)(nil)

func (p *fakeProvider) AuthURL(scope, state string) string {
	return "https://accounts.test/authorize?scope=" + scope + "&state=" + url.QueryEscape(state)
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, _ string) (music.Token, error) {
	return music.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, ExpiresIn: 3600}, nil
}

func (p *fakeProvider) Refresh(context.Context, string) (music.Token, error) {
	return music.Token{AccessToken: "refreshed", ExpiresIn: 3600}, nil
}

func (p *fakeProvider) FetchProfile(context.Context, string) (music.Profile, error) {
	return music.Profile{ID: "dj-admin"}, nil
}

func (p *fakeProvider) Search(_ context.Context, query, _ string, _ int) ([]music.Track, error) {
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return []music.Track{{ID: "t1", Name: query, URI: music.TrackURI("t1")}}, nil
}

func (p *fakeProvider) AddTrack(_ context.Context, trackURI, _, _ string) (bool, error) {
	p.Lock()
	defer p.Unlock()
	if p.addErr != nil {
		return false, p.addErr
	}
	p.added = append(p.added, trackURI)
	return true, nil
}

func (p *fakeProvider) RemoveTrack(_ context.Context, trackURI, _, _ string) (bool, error) {
	p.Lock()
	defer p.Unlock()
	p.removed = append(p.removed, trackURI)
	return true, nil
}

func (p *fakeProvider) ClientCredentialsToken(context.Context) (string, error) {
	return p.token, p.tokenErr
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(conf, echoapi.GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}
