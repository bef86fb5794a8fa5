package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

const discordAPIBase = "https://discord.com/api"

var discordEndpoint = oauth2.Endpoint{
	AuthURL:  discordAPIBase + "/oauth2/authorize",
	TokenURL: discordAPIBase + "/oauth2/token",
}

// DiscordConfig configures account linking.
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// APIBase and Endpoint override the Discord hosts, mostly for tests.
	APIBase  string
	Endpoint *oauth2.Endpoint
}

// DiscordLinker runs the OAuth code flow that links a Discord handle.
type DiscordLinker struct {
	oauth   *oauth2.Config
	apiBase string
}

// NewDiscordLinker returns nil when client credentials are missing.
func NewDiscordLinker(cfg DiscordConfig) *DiscordLinker {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil
	}
	endpoint := discordEndpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	apiBase := discordAPIBase
	if cfg.APIBase != "" {
		apiBase = strings.TrimRight(cfg.APIBase, "/")
	}
	return &DiscordLinker{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint:     endpoint,
		},
		apiBase: apiBase,
	}
}

// Enabled reports whether the linker is configured.
func (d *DiscordLinker) Enabled() bool {
	return d != nil
}

// AuthCodeURL is where the browser is sent to approve the link.
func (d *DiscordLinker) AuthCodeURL(state string) string {
	return d.oauth.AuthCodeURL(state)
}

// Exchange trades the code for a token and returns the user's Discord tag.
func (d *DiscordLinker) Exchange(ctx context.Context, code string) (string, error) {
	token, err := d.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange discord code: %w", err)
	}

	resp, err := d.oauth.Client(ctx, token).Get(d.apiBase + "/users/@me")
	if err != nil {
		return "", fmt.Errorf("fetch discord profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch discord profile: status %d", resp.StatusCode)
	}

	var profile struct {
		Username      string `json:"username"`
		Discriminator string `json:"discriminator"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("decode discord profile: %w", err)
	}
	return DiscordTag(profile.Username, profile.Discriminator), nil
}

// DiscordTag formats a handle; accounts migrated off discriminators report "0".
func DiscordTag(username, discriminator string) string {
	if discriminator == "" || discriminator == "0" {
		return username
	}
	return username + "#" + discriminator
}
