package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/gitlab"

	"github.com/gitping/relay/internal/db"
)

const oauthStateCookie = "oauth_state"

// GitlabUser is the slice of the GitLab /user API response the relay needs.
type GitlabUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// GitlabOAuth wraps golang.org/x/oauth2 for the GitLab authorization code
// flow. The exchanged token is used once, to read the user's identity; the
// relay never stores GitLab credentials.
type GitlabOAuth struct {
	config   *oauth2.Config
	redirect appRedirect
}

// NewGitlabOAuth creates a GitlabOAuth provider. callbackURL must match the
// redirect URI registered on the GitLab application; appScheme is the mobile
// app's URL scheme every flow outcome redirects into.
func NewGitlabOAuth(appID, appSecret, callbackURL, appScheme string) *GitlabOAuth {
	return &GitlabOAuth{
		redirect: appRedirect{scheme: appScheme},
		config: &oauth2.Config{
			ClientID:     appID,
			ClientSecret: appSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read_user"},
			Endpoint:     gitlab.Endpoint,
		},
	}
}

// AuthURL returns the GitLab authorization URL for the given state.
func (p *GitlabOAuth) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the GitLab user identity.
func (p *GitlabOAuth) Exchange(ctx context.Context, code string) (*GitlabUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange OAuth code: %w", err)
	}

	client := p.config.Client(ctx, token)
	resp, err := client.Get("https://gitlab.com/api/v4/user")
	if err != nil {
		return nil, fmt.Errorf("call GitLab user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitLab user API returned status %d", resp.StatusCode)
	}

	var glUser GitlabUser
	if err := json.NewDecoder(resp.Body).Decode(&glUser); err != nil {
		return nil, fmt.Errorf("decode GitLab user response: %w", err)
	}
	if glUser.ID == 0 {
		return nil, errors.New("GitLab returned an invalid user")
	}

	return &glUser, nil
}

// appRedirect sends the browser back into the mobile app via its URL scheme.
type appRedirect struct {
	scheme string
}

func (a appRedirect) success(w http.ResponseWriter, r *http.Request, accessToken, refreshToken string) {
	q := url.Values{}
	q.Set("accessToken", accessToken)
	q.Set("refreshToken", refreshToken)
	http.Redirect(w, r, a.scheme+"auth?"+q.Encode(), http.StatusFound)
}

func (a appRedirect) failure(w http.ResponseWriter, r *http.Request, message string) {
	q := url.Values{}
	q.Set("error", message)
	http.Redirect(w, r, a.scheme+"auth?"+q.Encode(), http.StatusFound)
}

// GitlabAuthorize handles GET /auth/gitlab. A valid access token in the
// optional "token" query parameter turns the flow into account linking for
// that user; otherwise the callback logs in or signs up by GitLab id.
func (h *Handler) GitlabAuthorize(w http.ResponseWriter, r *http.Request) {
	redirect := h.gitlab.redirect
	nonce := uuid.NewString()
	state := nonce

	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		userID, err := h.tokens.ValidateAccess(tokenStr)
		if err != nil {
			redirect.failure(w, r, "Unauthorized")
			return
		}
		state = nonce + "." + userID.String()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    nonce,
		Path:     "/auth/gitlab",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.gitlab.AuthURL(state), http.StatusFound)
}

// GitlabCallback handles GET /auth/gitlab/callback. All outcomes redirect
// into the app; errors travel as a query parameter because the browser is
// about to leave the relay's origin.
func (h *Handler) GitlabCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	redirect := h.gitlab.redirect

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		redirect.failure(w, r, "Missing code or state")
		return
	}

	cookie, err := r.Cookie(oauthStateCookie)
	nonce, linkID, _ := strings.Cut(state, ".")
	if err != nil || cookie.Value != nonce {
		redirect.failure(w, r, "Invalid OAuth state")
		return
	}

	glUser, err := h.gitlab.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("gitlab OAuth exchange failed", zap.Error(err))
		redirect.failure(w, r, "GitLab authorization failed")
		return
	}

	var user *db.User
	if linkID != "" {
		user, err = h.linkGitlabAccount(ctx, linkID, glUser.ID)
	} else {
		user, err = h.loginOrSignupByGitlabID(ctx, glUser)
	}
	if err != nil {
		if errors.Is(err, db.ErrGitlabIDTaken) {
			redirect.failure(w, r, "GitLab account already connected to another user")
			return
		}
		h.logger.Error("gitlab OAuth account resolution failed", zap.Error(err))
		redirect.failure(w, r, "GitLab authorization failed")
		return
	}

	pair, err := h.tokens.GeneratePair(user.ID)
	if err != nil {
		h.logger.Error("failed to issue tokens after OAuth", zap.Error(err))
		redirect.failure(w, r, "GitLab authorization failed")
		return
	}

	redirect.success(w, r, pair.AccessToken, pair.RefreshToken)
}

func (h *Handler) linkGitlabAccount(ctx context.Context, linkID string, gitlabID int64) (*db.User, error) {
	userID, err := uuid.Parse(linkID)
	if err != nil {
		return nil, fmt.Errorf("invalid link state: %w", err)
	}
	return h.users.UpdateUser(ctx, userID, db.UserUpdate{GitlabID: &gitlabID})
}

func (h *Handler) loginOrSignupByGitlabID(ctx context.Context, glUser *GitlabUser) (*db.User, error) {
	user, err := h.users.GetUserByGitlabID(ctx, glUser.ID)
	if err == nil {
		if err := h.users.TouchLastLogin(ctx, user.ID); err != nil {
			h.logger.Error("failed to touch last login", zap.Error(err),
				zap.String("user_id", user.ID.String()))
		}
		return user, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	user = &db.User{
		ID:       uuid.New(),
		GitlabID: &glUser.ID,
	}
	if glUser.Email != "" {
		email := strings.ToLower(glUser.Email)
		user.Email = &email
	}
	if err := h.createUserWithHook(ctx, user); err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			// The GitLab email is already a password account; don't hijack
			// it, sign in requires the password or an explicit link.
			user.Email = nil
			if err := h.createUserWithHook(ctx, user); err != nil {
				return nil, err
			}
			return user, nil
		}
		return nil, err
	}

	h.logger.Info("user signed up via gitlab",
		zap.String("user_id", user.ID.String()),
		zap.Int64("gitlab_id", glUser.ID),
	)
	return user, nil
}
