package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIURL = "https://api.github.com"

// GitHubUser is the portion of the GitHub /user API response we care about.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type GitHubUser struct {
	ID        int64  `json:"id"`         // GitHub's numeric user ID, stable forever
	Login     string `json:"login"`      // GitHub username
	Email     string `json:"email"`      // public email, empty if hidden
	AvatarURL string `json:"avatar_url"` // profile picture URL
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. Redirect the user to GitHub with our ClientID and scopes (AuthURL).
//  2. The user approves on GitHub.
//  3. GitHub redirects back to the callback URL with a short-lived "code".
//  4. Exchange the code for an access token, server-to-server (Exchange).
//  5. Use the access token to read the user's profile.
//
// The access token never reaches the browser.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// callbackURL must match the "Authorization callback URL" of the OAuth App
// exactly, e.g. "http://localhost:8080/auth/github/callback".
//
// Scopes:
//   - "read:user"  → public profile (ID, login, avatar)
//   - "user:email" → email addresses, including hidden ones
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiURL: githubAPIURL,
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// STATE PARAMETER:
// The caller generates a random state, stores it in a cookie and passes it
// here. The callback must present the same value, which proves the flow was
// started by this server and not by a CSRF attacker.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// GitHub user profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	return p.fetchUser(ctx, oauthToken)
}

// fetchUser reads /user with the access token. oauth2.Config.Client returns
// an *http.Client that adds "Authorization: Bearer <token>" to every
// request; resty sits on top of it for JSON decoding and status checks.
func (p *GitHubProvider) fetchUser(ctx context.Context, token *oauth2.Token) (*GitHubUser, error) {
	client := resty.NewWithClient(p.config.Client(ctx, token)).
		SetBaseURL(p.apiURL).
		SetHeader("Accept", "application/vnd.github+json")

	var ghUser GitHubUser
	resp, err := client.R().SetContext(ctx).SetResult(&ghUser).Get("/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode())
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	// Users who hide their email on their profile still expose it through
	// /user/emails with the user:email scope.
	if ghUser.Email == "" {
		var emails []githubEmail
		resp, err := client.R().SetContext(ctx).SetResult(&emails).Get("/user/emails")
		if err == nil && !resp.IsError() {
			ghUser.Email = primaryEmail(emails)
		}
	}

	return &ghUser, nil
}

func primaryEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return strings.TrimSpace(e.Email)
		}
	}
	return ""
}
