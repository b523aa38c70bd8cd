package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/justestif/moodtunes/internal/catalog"
	"github.com/justestif/moodtunes/internal/emotion"
)

// maxBreakdownClusters caps the clusters a breakdown request may ask for.
const maxBreakdownClusters = 10

// EmotionDetector classifies text and listening histories.
type EmotionDetector interface {
	ClassifyText(text string) emotion.Mood
	ClassifyHistory(history []emotion.FeatureSnapshot) emotion.Mood
	Breakdown(history []emotion.FeatureSnapshot, k int) []emotion.MoodCluster
}

// Catalog is the subset of the Spotify client used by the handlers.
type Catalog interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (catalog.TokenPayload, error)
	RefreshUserToken(ctx context.Context, refreshToken string) (catalog.TokenPayload, error)
	Recommendations(ctx context.Context, mood emotion.Mood, limit int) ([]catalog.Track, error)
	UserListeningHistory(ctx context.Context, userToken string, limit int) ([]catalog.Track, error)
	SeedGenres(ctx context.Context) ([]string, error)
	AudioFeatures(ctx context.Context, userToken string, ids []string) ([]emotion.FeatureSnapshot, error)
}

// HandlersConfig holds the dependencies of Handlers.
type HandlersConfig struct {
	Emotions    EmotionDetector
	Catalog     Catalog
	Templates   *Templates
	States      *StateStore
	FrontendURL string
	Logger      *zap.Logger
}

// Handlers contains HTTP handlers for the application.
type Handlers struct {
	emotions    EmotionDetector
	catalog     Catalog
	templates   *Templates
	states      *StateStore
	frontendURL string
	log         *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg HandlersConfig) *Handlers {
	h := &Handlers{
		emotions:    cfg.Emotions,
		catalog:     cfg.Catalog,
		templates:   cfg.Templates,
		states:      cfg.States,
		frontendURL: cfg.FrontendURL,
		log:         cfg.Logger,
	}
	if h.states == nil {
		h.states = NewStateStore()
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

type detectEmotionRequest struct {
	Text    string                    `json:"text"`
	History []emotion.FeatureSnapshot `json:"history"`
}

type detectEmotionResponse struct {
	Status  string       `json:"status"`
	Emotion emotion.Mood `json:"emotion"`
}

type breakdownRequest struct {
	History  []emotion.FeatureSnapshot `json:"history"`
	Clusters int                       `json:"clusters"`
}

type breakdownResponse struct {
	Status   string                `json:"status"`
	Emotion  emotion.Mood          `json:"emotion"`
	Clusters []emotion.MoodCluster `json:"clusters"`
}

type historyEmotionResponse struct {
	Status   string       `json:"status"`
	Emotion  emotion.Mood `json:"emotion"`
	Tracks   int          `json:"tracks"`
	Analyzed int          `json:"analyzed"` // tracks with audio features
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	Status       string `json:"status"`
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Home handles the landing page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := HomePageData{
		PageData: PageData{
			Title:       "Moodtunes",
			CurrentPath: r.URL.Path,
		},
		Moods: moodData(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, "home", data); err != nil {
		h.log.Error("rendering home page", zap.Error(err))
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
}

// Health reports liveness (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Recommendations returns tracks for a mood (GET /recommendations).
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("emotion")
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, "emotion is required")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	tracks, err := h.catalog.Recommendations(r.Context(), emotion.ParseMood(raw), limit)
	if err != nil {
		h.log.Error("recommendations failed", zap.String("emotion", raw), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(tracks) == 0 {
		writeError(w, http.StatusBadRequest, "No recommendations found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// Genres lists Spotify's seed genres (GET /genres).
func (h *Handlers) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.SeedGenres(r.Context())
	if err != nil {
		h.log.Error("listing seed genres failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

// DetectEmotion classifies text or a listening history (POST /detect-emotion).
// Text wins when both are given.
func (h *Handlers) DetectEmotion(w http.ResponseWriter, r *http.Request) {
	var req detectEmotionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var mood emotion.Mood
	switch {
	case strings.TrimSpace(req.Text) != "":
		mood = h.emotions.ClassifyText(req.Text)
	case len(req.History) > 0:
		mood = h.emotions.ClassifyHistory(req.History)
	default:
		writeError(w, http.StatusBadRequest, "Either text or history must be provided")
		return
	}

	writeJSON(w, http.StatusOK, detectEmotionResponse{Status: "success", Emotion: mood})
}

// EmotionBreakdown splits a listening history into mood clusters
// (POST /detect-emotion/breakdown).
func (h *Handlers) EmotionBreakdown(w http.ResponseWriter, r *http.Request) {
	var req breakdownRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.History) == 0 {
		writeError(w, http.StatusBadRequest, "history must not be empty")
		return
	}
	if req.Clusters < 0 || req.Clusters > maxBreakdownClusters {
		writeError(w, http.StatusBadRequest, "clusters must be between 1 and "+strconv.Itoa(maxBreakdownClusters))
		return
	}

	writeJSON(w, http.StatusOK, breakdownResponse{
		Status:   "success",
		Emotion:  h.emotions.ClassifyHistory(req.History),
		Clusters: h.emotions.Breakdown(req.History, req.Clusters),
	})
}

// SpotifyAuth returns the Spotify consent URL (GET /spotify-auth).
func (h *Handlers) SpotifyAuth(w http.ResponseWriter, _ *http.Request) {
	state := h.states.Issue()
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": h.catalog.AuthorizationURL(state)})
}

// SpotifyCallback completes the authorization-code flow (GET /spotify-callback).
// The browser is sent to the frontend with the token in the URL fragment, or
// with an error query parameter.
//
// The state parameter is required even though Spotify treats it as optional:
// a missing, unknown or already used state is rejected with state_mismatch.
func (h *Handlers) SpotifyCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if !h.states.Consume(q.Get("state")) {
		h.log.Warn("spotify callback with unknown state")
		h.redirectError(w, r, "state_mismatch")
		return
	}
	if reason := q.Get("error"); reason != "" {
		h.log.Warn("spotify authorization denied", zap.String("reason", reason))
		h.redirectError(w, r, reason)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.redirectError(w, r, "missing_code")
		return
	}

	token, err := h.catalog.ExchangeCode(r.Context(), code)
	if err != nil {
		h.log.Error("exchanging authorization code failed", zap.Error(err))
		h.redirectError(w, r, "token_exchange_failed")
		return
	}

	fragment := url.Values{}
	fragment.Set("access_token", token.AccessToken)
	fragment.Set("token_type", token.TokenType)
	fragment.Set("expires_in", strconv.FormatInt(token.ExpiresIn, 10))
	if token.RefreshToken != "" {
		fragment.Set("refresh_token", token.RefreshToken)
	}

	target, err := url.Parse(h.frontendURL)
	if err != nil {
		http.Error(w, "Invalid frontend URL", http.StatusInternalServerError)
		return
	}
	target.Fragment = ""
	http.Redirect(w, r, target.String()+"#"+fragment.Encode(), http.StatusFound)
}

// SpotifyRefresh exchanges a refresh token for a new access token
// (POST /spotify-refresh).
func (h *Handlers) SpotifyRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	token, err := h.catalog.RefreshUserToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.log.Warn("refreshing user token failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Status:       "success",
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		ExpiresIn:    token.ExpiresIn,
		RefreshToken: token.RefreshToken,
	})
}

// UserHistory returns a user's recently played and top tracks
// (GET /user-history).
func (h *Handlers) UserHistory(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	history, err := h.catalog.UserListeningHistory(r.Context(), token, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, upstreamDetail(err, "Failed to fetch user listening history"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "history": history})
}

// UserHistoryEmotion classifies a user's listening history from the audio
// features of its tracks (GET /user-history/emotion).
func (h *Handlers) UserHistoryEmotion(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	history, err := h.catalog.UserListeningHistory(r.Context(), token, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, upstreamDetail(err, "Failed to fetch user listening history"))
		return
	}

	ids := make([]string, len(history))
	for i, t := range history {
		ids[i] = t.ID
	}
	snapshots, err := h.catalog.AudioFeatures(r.Context(), token, ids)
	if err != nil {
		writeError(w, http.StatusBadRequest, upstreamDetail(err, "Failed to fetch audio features"))
		return
	}

	writeJSON(w, http.StatusOK, historyEmotionResponse{
		Status:   "success",
		Emotion:  h.emotions.ClassifyHistory(snapshots),
		Tracks:   len(history),
		Analyzed: len(snapshots),
	})
}

// upstreamDetail describes a Spotify failure, or returns fallback for
// anything else.
func upstreamDetail(err error, fallback string) string {
	var ue *catalog.UpstreamError
	if errors.As(err, &ue) {
		return ue.Error()
	}
	return fallback
}

// redirectError sends the browser to the frontend with ?error=reason.
func (h *Handlers) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	target, err := url.Parse(h.frontendURL)
	if err != nil {
		http.Error(w, "Invalid frontend URL", http.StatusInternalServerError)
		return
	}
	q := target.Query()
	q.Set("error", reason)
	target.RawQuery = q.Encode()
	target.Fragment = ""
	http.Redirect(w, r, target.String(), http.StatusFound)
}
