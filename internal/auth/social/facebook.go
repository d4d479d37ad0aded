package social

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/oauth2"
)

const (
	FacebookGraphURL = "https://graph.facebook.com/v19.0"
	facebookFields   = "id,email,first_name,last_name,picture"
)

// FacebookConfig identifies the Facebook app whose user tokens are accepted.
type FacebookConfig struct {
	GraphURL  string
	AppID     string
	AppSecret string
	CacheTTL  time.Duration
}

type facebookDebug struct {
	Data struct {
		AppID   string `mapstructure:"app_id"`
		UserID  string `mapstructure:"user_id"`
		IsValid bool   `mapstructure:"is_valid"`
	} `mapstructure:"data"`
}

type facebookMe struct {
	ID        string `mapstructure:"id"`
	Email     string `mapstructure:"email"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
	Picture   struct {
		Data struct {
			URL string `mapstructure:"url"`
		} `mapstructure:"data"`
	} `mapstructure:"picture"`
}

// FacebookVerifier accepts a Facebook user access token only when the
// debug_token introspection reports it valid and issued to the configured
// app, then resolves the profile through /me. Successful lookups are cached
// so repeated logins with the same token skip both round trips.
type FacebookVerifier struct {
	graphURL  string
	appID     string
	appSecret string
	client    *http.Client
	cache     *expirable.LRU[string, Identity]
}

func NewFacebookVerifier(cfg FacebookConfig, client *http.Client) *FacebookVerifier {
	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = FacebookGraphURL
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &FacebookVerifier{
		graphURL:  strings.TrimRight(graphURL, "/"),
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		client:    client,
		cache:     expirable.NewLRU[string, Identity](1024, nil, ttl),
	}
}

func (f *FacebookVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: facebook: empty token", ErrVerification)
	}
	if f.appID == "" || f.appSecret == "" {
		return nil, fmt.Errorf("%w: facebook: app credentials are not configured", ErrVerification)
	}
	if id, ok := f.cache.Get(token); ok {
		return &id, nil
	}

	userID, err := f.introspect(ctx, token)
	if err != nil {
		return nil, err
	}
	me, err := f.me(ctx, token)
	if err != nil {
		return nil, err
	}
	if me.ID == "" || me.ID != userID {
		return nil, fmt.Errorf("%w: facebook: token user mismatch", ErrVerification)
	}

	id := Identity{
		ID:            me.ID,
		Email:         me.Email,
		EmailVerified: me.Email != "",
		FirstName:     me.FirstName,
		LastName:      me.LastName,
		Picture:       me.Picture.Data.URL,
	}
	f.cache.Add(token, id)
	return &id, nil
}

// introspect asks debug_token, authenticated with the app token, who the
// user token belongs to.
func (f *FacebookVerifier) introspect(ctx context.Context, token string) (string, error) {
	q := url.Values{}
	q.Set("input_token", token)
	q.Set("access_token", f.appID+"|"+f.appSecret)
	var dbg facebookDebug
	if err := f.get(ctx, f.client, f.graphURL+"/debug_token?"+q.Encode(), &dbg); err != nil {
		return "", err
	}
	if !dbg.Data.IsValid {
		return "", fmt.Errorf("%w: facebook: token is not valid", ErrVerification)
	}
	if dbg.Data.AppID != f.appID {
		return "", fmt.Errorf("%w: facebook: token issued to app %q", ErrVerification, dbg.Data.AppID)
	}
	return dbg.Data.UserID, nil
}

func (f *FacebookVerifier) me(ctx context.Context, token string) (*facebookMe, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	mac := hmac.New(sha256.New, []byte(f.appSecret))
	mac.Write([]byte(token))
	q := url.Values{}
	q.Set("fields", facebookFields)
	q.Set("appsecret_proof", hex.EncodeToString(mac.Sum(nil)))

	var me facebookMe
	if err := f.get(ctx, httpClient, f.graphURL+"/me?"+q.Encode(), &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (f *FacebookVerifier) get(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: facebook: %v", ErrVerification, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: facebook: status %d", ErrVerification, resp.StatusCode)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("%w: facebook: decode: %v", ErrVerification, err)
	}
	if err := mapstructure.Decode(raw, out); err != nil {
		return fmt.Errorf("%w: facebook: decode: %v", ErrVerification, err)
	}
	return nil
}
