package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/justestif/moodtunes/internal/catalog"
	"github.com/justestif/moodtunes/internal/emotion"
	"github.com/justestif/moodtunes/internal/sentiment"
)

type stubAnalyzer sentiment.Label

func (s stubAnalyzer) Analyze(string) sentiment.Label {
	return sentiment.Label(s)
}

type fakeCatalog struct {
	tracks     []catalog.Track
	recsErr    error
	gotMood    emotion.Mood
	gotLimit   int
	gotToken   string
	history    []catalog.Track
	historyErr error
	exchange   catalog.TokenPayload
	exchErr    error
	gotCode    string
	refresh    catalog.TokenPayload
	refreshErr error
	genres     []string
	genresErr  error
	lastState  string
	features   []emotion.FeatureSnapshot
	featErr    error
	gotIDs     []string
}

func (f *fakeCatalog) AuthorizationURL(state string) string {
	f.lastState = state
	return "https://accounts.example.com/authorize?state=" + state
}

func (f *fakeCatalog) ExchangeCode(_ context.Context, code string) (catalog.TokenPayload, error) {
	f.gotCode = code
	return f.exchange, f.exchErr
}

func (f *fakeCatalog) RefreshUserToken(_ context.Context, refreshToken string) (catalog.TokenPayload, error) {
	if refreshToken == "" {
		return catalog.TokenPayload{}, catalog.ErrMissingRefreshToken
	}
	return f.refresh, f.refreshErr
}

func (f *fakeCatalog) Recommendations(_ context.Context, mood emotion.Mood, limit int) ([]catalog.Track, error) {
	f.gotMood = mood
	f.gotLimit = limit
	return f.tracks, f.recsErr
}

func (f *fakeCatalog) UserListeningHistory(_ context.Context, token string, limit int) ([]catalog.Track, error) {
	f.gotToken = token
	f.gotLimit = limit
	return f.history, f.historyErr
}

func (f *fakeCatalog) SeedGenres(context.Context) ([]string, error) {
	return f.genres, f.genresErr
}

func (f *fakeCatalog) AudioFeatures(_ context.Context, _ string, ids []string) ([]emotion.FeatureSnapshot, error) {
	f.gotIDs = ids
	return f.features, f.featErr
}

var testTemplates = fstest.MapFS{
	"layouts/base.html": {Data: []byte(`{{define "base"}}<title>{{.Title}}</title>{{template "content" .}}{{end}}`)},
	"pages/home.html":   {Data: []byte(`{{define "content"}}{{range .Moods}}<b style="color: {{moodColor .Energy .Valence}}">{{.Name}}</b>{{end}}{{end}}`)},
}

func newTestServer(t *testing.T, cat *fakeCatalog) *Server {
	t.Helper()

	log := zaptest.NewLogger(t)
	srv, err := NewServer(ServerConfig{
		FrontendURL: "http://localhost:3000/app",
		TemplatesFS: testTemplates,
		StaticFS:    fstest.MapFS{"css/app.css": {Data: []byte("body{}")}},
		Emotions:    emotion.NewClassifier(stubAnalyzer(sentiment.Neutral), log),
		Catalog:     cat,
		Logger:      log,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func do(t *testing.T, srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("NewServer() without dependencies error = nil, want error")
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{})

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %v, want ok", got)
	}
}

func TestHome(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{})

	rec := do(t, srv, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	for _, m := range emotion.Moods {
		if !strings.Contains(body, ">"+m.String()+"<") {
			t.Errorf("home page is missing mood %s", m)
		}
	}
	if !strings.Contains(body, "hsl(") {
		t.Errorf("home page is missing mood colors: %s", body)
	}
}

func TestStatic(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{})

	rec := do(t, srv, http.MethodGet, "/static/css/app.css", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
		t.Errorf("GET /static/css/app.css = %d %q", rec.Code, rec.Body.String())
	}
}

func TestDetectEmotion(t *testing.T) {
	sadHistory := `[{"danceability":0.2,"energy":0.3,"valence":0.1,"tempo":70}]`

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMood   string
		wantDetail string
	}{
		{"text", `{"text":"I feel so angry right now"}`, http.StatusOK, "angry", ""},
		{"history", `{"history":` + sadHistory + `}`, http.StatusOK, "sad", ""},
		{"text wins over history", `{"text":"let's party and dance","history":` + sadHistory + `}`, http.StatusOK, "energetic", ""},
		{"blank text falls back to history", `{"text":"   ","history":` + sadHistory + `}`, http.StatusOK, "sad", ""},
		{"neutral text without keywords", `{"text":"the bus was on time"}`, http.StatusOK, "calm", ""},
		{"neither field", `{}`, http.StatusBadRequest, "", "Either text or history must be provided"},
		{"empty history", `{"history":[]}`, http.StatusBadRequest, "", "Either text or history must be provided"},
		{"malformed json", `{"text":`, http.StatusBadRequest, "", "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeCatalog{})

			rec := do(t, srv, http.MethodPost, "/detect-emotion", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			body := decode(t, rec)
			if tt.wantMood != "" {
				if body["status"] != "success" || body["emotion"] != tt.wantMood {
					t.Errorf("body = %v, want success with emotion %s", body, tt.wantMood)
				}
			}
			if tt.wantDetail != "" {
				if body["status"] != "error" || body["detail"] != tt.wantDetail {
					t.Errorf("body = %v, want error %q", body, tt.wantDetail)
				}
			}
		})
	}
}

func TestEmotionBreakdown(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{})

	rec := do(t, srv, http.MethodPost, "/detect-emotion/breakdown", `{"history":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty history status = %d, want 400", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/detect-emotion/breakdown", `{"history":[{}],"clusters":50}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("too many clusters status = %d, want 400", rec.Code)
	}

	history := `[{"danceability":0.3,"energy":0.2,"valence":0.6,"tempo":80},{"danceability":0.3,"energy":0.2,"valence":0.6,"tempo":80}]`
	rec = do(t, srv, http.MethodPost, "/detect-emotion/breakdown", `{"history":`+history+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp breakdownResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "success" || resp.Emotion != emotion.Calm {
		t.Errorf("response = %+v, want success with calm", resp)
	}
	if len(resp.Clusters) != 1 || resp.Clusters[0].Size != 2 {
		t.Errorf("clusters = %+v, want one cluster of 2", resp.Clusters)
	}
}

func TestRecommendations(t *testing.T) {
	cat := &fakeCatalog{tracks: []catalog.Track{
		{ID: "t1", Name: "Song", Artists: []string{"Artist"}, URI: "spotify:track:t1", Popularity: 70},
	}}
	srv := newTestServer(t, cat)

	rec := do(t, srv, http.MethodGet, "/recommendations?emotion=SAD&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if cat.gotMood != emotion.Sad || cat.gotLimit != 5 {
		t.Errorf("catalog called with (%s, %d), want (sad, 5)", cat.gotMood, cat.gotLimit)
	}

	var resp struct {
		Tracks []catalog.Track `json:"tracks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Tracks) != 1 || resp.Tracks[0].ID != "t1" || resp.Tracks[0].Popularity != 70 {
		t.Errorf("tracks = %+v", resp.Tracks)
	}
}

func TestRecommendations_UnknownMoodIsHappy(t *testing.T) {
	cat := &fakeCatalog{tracks: []catalog.Track{{ID: "t1"}}}
	srv := newTestServer(t, cat)

	do(t, srv, http.MethodGet, "/recommendations?emotion=nostalgic", "")
	if cat.gotMood != emotion.Happy {
		t.Errorf("mood = %s, want happy", cat.gotMood)
	}
}

func TestRecommendations_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		cat        *fakeCatalog
		wantStatus int
		wantDetail string
	}{
		{"no tracks", "/recommendations?emotion=happy", &fakeCatalog{}, http.StatusBadRequest, "No recommendations found"},
		{"missing emotion", "/recommendations", &fakeCatalog{}, http.StatusBadRequest, "emotion is required"},
		{"bad limit", "/recommendations?emotion=happy&limit=abc", &fakeCatalog{}, http.StatusBadRequest, "limit must be a positive integer"},
		{"negative limit", "/recommendations?emotion=happy&limit=-1", &fakeCatalog{}, http.StatusBadRequest, "limit must be a positive integer"},
		{
			"token failure", "/recommendations?emotion=happy",
			&fakeCatalog{recsErr: &catalog.UpstreamError{Op: "client credentials token", Status: 401, Message: "Invalid client"}},
			http.StatusBadGateway, "spotify client credentials token: status 401: Invalid client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.cat)

			rec := do(t, srv, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode(t, rec)
			if body["status"] != "error" || body["detail"] != tt.wantDetail {
				t.Errorf("body = %v, want detail %q", body, tt.wantDetail)
			}
		})
	}
}

func TestGenres(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{genres: []string{"jazz", "pop"}})

	rec := do(t, srv, http.MethodGet, "/genres", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	genres, _ := decode(t, rec)["genres"].([]any)
	if len(genres) != 2 {
		t.Errorf("genres = %v, want 2 entries", genres)
	}

	srv = newTestServer(t, &fakeCatalog{genresErr: errors.New("boom")})
	if rec := do(t, srv, http.MethodGet, "/genres", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("failure status = %d, want 502", rec.Code)
	}
}

// authorize runs /spotify-auth and returns the issued state.
func authorize(t *testing.T, srv http.Handler, cat *fakeCatalog) string {
	t.Helper()

	rec := do(t, srv, http.MethodGet, "/spotify-auth", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/spotify-auth status = %d, want 200", rec.Code)
	}
	authURL, _ := decode(t, rec)["auth_url"].(string)
	if cat.lastState == "" || !strings.HasSuffix(authURL, "state="+cat.lastState) {
		t.Fatalf("auth_url = %q, want it to carry the issued state", authURL)
	}
	return cat.lastState
}

func TestSpotifyCallback_Success(t *testing.T) {
	cat := &fakeCatalog{exchange: catalog.TokenPayload{
		AccessToken:  "acc",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "ref",
	}}
	srv := newTestServer(t, cat)
	state := authorize(t, srv, cat)

	rec := do(t, srv, http.MethodGet, "/spotify-callback?code=abc&state="+state, "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if cat.gotCode != "abc" {
		t.Errorf("exchanged code = %q, want abc", cat.gotCode)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	if loc.Host != "localhost:3000" || loc.Path != "/app" {
		t.Errorf("redirect = %s, want frontend URL", loc)
	}
	fragment, err := url.ParseQuery(loc.Fragment)
	if err != nil {
		t.Fatalf("parsing fragment: %v", err)
	}
	want := map[string]string{
		"access_token":  "acc",
		"token_type":    "Bearer",
		"expires_in":    "3600",
		"refresh_token": "ref",
	}
	for k, v := range want {
		if got := fragment.Get(k); got != v {
			t.Errorf("fragment %s = %q, want %q", k, got, v)
		}
	}

	// A state is only good once.
	rec = do(t, srv, http.MethodGet, "/spotify-callback?code=abc&state="+state, "")
	if got := redirectError(t, rec); got != "state_mismatch" {
		t.Errorf("replayed state error = %q, want state_mismatch", got)
	}
}

func TestSpotifyCallback_Failures(t *testing.T) {
	tests := []struct {
		name      string
		cat       *fakeCatalog
		query     func(state string) string
		wantError string
	}{
		{
			name:      "unknown state",
			cat:       &fakeCatalog{},
			query:     func(string) string { return "code=abc&state=forged" },
			wantError: "state_mismatch",
		},
		{
			name:      "missing state",
			cat:       &fakeCatalog{},
			query:     func(string) string { return "code=abc" },
			wantError: "state_mismatch",
		},
		{
			name:      "user denied access",
			cat:       &fakeCatalog{},
			query:     func(s string) string { return "error=access_denied&state=" + s },
			wantError: "access_denied",
		},
		{
			name:      "missing code",
			cat:       &fakeCatalog{},
			query:     func(s string) string { return "state=" + s },
			wantError: "missing_code",
		},
		{
			name:      "exchange failure",
			cat:       &fakeCatalog{exchErr: errors.New("invalid_grant")},
			query:     func(s string) string { return "code=abc&state=" + s },
			wantError: "token_exchange_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.cat)
			state := authorize(t, srv, tt.cat)

			rec := do(t, srv, http.MethodGet, "/spotify-callback?"+tt.query(state), "")
			if got := redirectError(t, rec); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}
}

func redirectError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parsing Location: %v", err)
	}
	if loc.Fragment != "" {
		t.Errorf("error redirect has fragment %q", loc.Fragment)
	}
	return loc.Query().Get("error")
}

func TestSpotifyRefresh(t *testing.T) {
	cat := &fakeCatalog{refresh: catalog.TokenPayload{AccessToken: "new", TokenType: "Bearer", ExpiresIn: 3600}}
	srv := newTestServer(t, cat)

	rec := do(t, srv, http.MethodPost, "/spotify-refresh", `{"refresh_token":"ref"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["status"] != "success" || body["access_token"] != "new" || body["expires_in"] != float64(3600) {
		t.Errorf("body = %v", body)
	}

	rec = do(t, srv, http.MethodPost, "/spotify-refresh", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing refresh_token status = %d, want 400", rec.Code)
	}

	cat.refreshErr = &catalog.UpstreamError{Op: "token refresh", Status: 400, Message: "Invalid refresh token"}
	rec = do(t, srv, http.MethodPost, "/spotify-refresh", `{"refresh_token":"revoked"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("upstream failure status = %d, want 400", rec.Code)
	}
}

func TestUserHistory(t *testing.T) {
	cat := &fakeCatalog{history: []catalog.Track{{ID: "t1"}, {ID: "t2"}}}
	srv := newTestServer(t, cat)

	rec := do(t, srv, http.MethodGet, "/user-history?token=user-bearer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if cat.gotToken != "user-bearer" || cat.gotLimit != 0 {
		t.Errorf("catalog called with (%q, %d), want (user-bearer, 0)", cat.gotToken, cat.gotLimit)
	}
	body := decode(t, rec)
	history, _ := body["history"].([]any)
	if body["status"] != "success" || len(history) != 2 {
		t.Errorf("body = %v", body)
	}
}

func TestUserHistory_Errors(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{})
	if rec := do(t, srv, http.MethodGet, "/user-history", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing token status = %d, want 400", rec.Code)
	}

	cat := &fakeCatalog{historyErr: &catalog.UpstreamError{Op: "recently played", Status: 401, Message: "The access token expired"}}
	srv = newTestServer(t, cat)

	rec := do(t, srv, http.MethodGet, "/user-history?token=expired", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decode(t, rec)["detail"]; got != "spotify recently played: status 401: The access token expired" {
		t.Errorf("detail = %v", got)
	}
}

func TestUserHistoryEmotion(t *testing.T) {
	energy, valence := 0.95, 0.7
	danceability, tempo := 0.9, 130.0
	cat := &fakeCatalog{
		history: []catalog.Track{{ID: "t1"}, {ID: "t2"}, {ID: "t3"}},
		features: []emotion.FeatureSnapshot{
			{Danceability: &danceability, Energy: &energy, Valence: &valence, Tempo: &tempo},
			{Danceability: &danceability, Energy: &energy, Valence: &valence, Tempo: &tempo},
		},
	}
	srv := newTestServer(t, cat)

	rec := do(t, srv, http.MethodGet, "/user-history/emotion?token=user-bearer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if strings.Join(cat.gotIDs, ",") != "t1,t2,t3" {
		t.Errorf("audio features requested for %v, want [t1 t2 t3]", cat.gotIDs)
	}

	var resp historyEmotionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	want := historyEmotionResponse{Status: "success", Emotion: emotion.Energetic, Tracks: 3, Analyzed: 2}
	if resp != want {
		t.Errorf("response = %+v, want %+v", resp, want)
	}
}

func TestUserHistoryEmotion_FeaturesFailure(t *testing.T) {
	cat := &fakeCatalog{
		history: []catalog.Track{{ID: "t1"}},
		featErr: &catalog.UpstreamError{Op: "audio features", Status: 403, Message: "Forbidden"},
	}
	srv := newTestServer(t, cat)

	rec := do(t, srv, http.MethodGet, "/user-history/emotion?token=user-bearer", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decode(t, rec)["detail"]; got != "spotify audio features: status 403: Forbidden" {
		t.Errorf("detail = %v", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodOptions, "/detect-emotion", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestStateStore(t *testing.T) {
	s := NewStateStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if s.Consume("") {
		t.Error("Consume(\"\") = true, want false")
	}

	fresh := s.Issue()
	stale := s.Issue()

	now = now.Add(stateTTL + time.Second)
	if s.Consume(stale) {
		t.Error("Consume() of an expired state = true, want false")
	}

	// Issuing sweeps expired states.
	s.Issue()
	if _, ok := s.states[fresh]; ok {
		t.Error("expired state was not swept")
	}
}

func TestMoodColor(t *testing.T) {
	tests := []struct {
		energy, valence float64
		want            string
	}{
		{0, 0, "hsl(264, 60%, 40%)"},
		{1, 1, "hsl(35, 100%, 60%)"},
	}
	for _, tt := range tests {
		if got := string(moodColor(tt.energy, tt.valence)); got != tt.want {
			t.Errorf("moodColor(%v, %v) = %q, want %q", tt.energy, tt.valence, got, tt.want)
		}
	}
}
