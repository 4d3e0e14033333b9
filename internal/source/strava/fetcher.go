package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/any-hub/apigate/internal/config"
	"github.com/any-hub/apigate/internal/logging"
	"github.com/any-hub/apigate/internal/policy"
	"github.com/any-hub/apigate/internal/upstream"
)

// Fetcher 用 refresh token 换取 access token，然后并行读取统计与最近活动。
type Fetcher struct {
	client        *http.Client
	oauth         *oauth2.Config
	baseURL       *url.URL
	athleteID     int64
	activityLimit int
	logger        *logrus.Logger

	mu           sync.Mutex
	refreshToken string
}

// NewFetcher 根据 [Strava] 配置创建 Fetcher，调用方需先确认 cfg.Enabled()。
func NewFetcher(httpClient *http.Client, cfg config.StravaConfig, logger *logrus.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse strava base url: %w", err)
	}
	limit := cfg.ActivityLimit
	if limit <= 0 {
		limit = 5
	}
	return &Fetcher{
		client: httpClient,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		baseURL:       parsed,
		athleteID:     cfg.AthleteID,
		activityLimit: limit,
		logger:        logger,
		refreshToken:  cfg.RefreshToken,
	}, nil
}

// FetchSnapshot 执行一次完整回源；任意一步失败都整体失败。
func (f *Fetcher) FetchSnapshot(ctx context.Context, _ struct{}) (Snapshot, error) {
	token, err := f.accessToken(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	var (
		stats      Stats
		activities []Activity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		endpoint := f.baseURL.JoinPath("athletes", strconv.FormatInt(f.athleteID, 10), "stats")
		return f.getJSON(gctx, endpoint, token, &stats)
	})
	g.Go(func() error {
		endpoint := f.baseURL.JoinPath("athlete", "activities")
		query := endpoint.Query()
		query.Set("per_page", strconv.Itoa(f.activityLimit))
		endpoint.RawQuery = query.Encode()
		return f.getJSON(gctx, endpoint, token, &activities)
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	if activities == nil {
		activities = []Activity{}
	}
	return Snapshot{Stats: &stats, Activities: activities}, nil
}

// accessToken 每次回源都重新换取 access token；响应中的新 refresh token 替换内存中的旧值。
func (f *Fetcher) accessToken(ctx context.Context) (*oauth2.Token, error) {
	f.mu.Lock()
	current := f.refreshToken
	f.mu.Unlock()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	token, err := f.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: current}).Token()
	if err != nil {
		return nil, tokenError(err)
	}

	if token.RefreshToken != "" && token.RefreshToken != current {
		f.mu.Lock()
		f.refreshToken = token.RefreshToken
		f.mu.Unlock()
		f.logger.WithFields(logging.SourceFields("strava_token", Key, EntryKey)).Info("strava_refresh_token_rotated")
	}
	return token, nil
}

func (f *Fetcher) getJSON(ctx context.Context, endpoint *url.URL, token *oauth2.Token, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", policy.ErrUpstreamFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", policy.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	if err := upstream.CheckResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", policy.ErrMalformedResponse, endpoint.Path, err)
	}
	return nil
}

func tokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return fmt.Errorf("token exchange: %w", upstream.FromResponse(retrieveErr.Response.StatusCode, retrieveErr.Body))
	}
	return fmt.Errorf("%w: token exchange: %v", policy.ErrUpstreamFailure, err)
}
