package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/patrickmn/go-cache"
)

const userAgent = "warikanbot/1.0 (+https://github.com/susu3304/warikanbot)"

type DiscordUser struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	GlobalName *string `json:"global_name"`
	Avatar     *string `json:"avatar"`
}

type DiscordGuild struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner *bool  `json:"owner,omitempty"`
}

func (a *API) getDiscordUser(ctx context.Context, accessToken string) (*DiscordUser, error) {
	var user DiscordUser
	if err := a.discordGet(ctx, accessToken, "/users/@me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *API) getDiscordGuilds(ctx context.Context, accessToken string) ([]DiscordGuild, error) {
	var guilds []DiscordGuild
	if err := a.discordGet(ctx, accessToken, "/users/@me/guilds", &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

func (a *API) discordGet(ctx context.Context, accessToken, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.discordBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// userGuilds returns the guilds visible to an access token, cached per token.
func (a *API) userGuilds(ctx context.Context, accessToken string) ([]DiscordGuild, error) {
	if cached, ok := a.guildCache.Get(accessToken); ok {
		return cached.([]DiscordGuild), nil
	}
	guilds, err := a.getDiscordGuilds(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	a.guildCache.Set(accessToken, guilds, cache.DefaultExpiration)
	return guilds, nil
}

func (a *API) userHasGuildAccess(ctx context.Context, accessToken, guildID string) (bool, error) {
	guilds, err := a.userGuilds(ctx, accessToken)
	if err != nil {
		return false, err
	}
	for _, g := range guilds {
		if g.ID == guildID {
			return true, nil
		}
	}
	return false, nil
}

func getUsername(user *DiscordUser) string {
	if user.GlobalName != nil && *user.GlobalName != "" {
		return *user.GlobalName
	}
	return user.Username
}
