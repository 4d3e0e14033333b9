package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/any-hub/apigate/internal/config"
	"github.com/any-hub/apigate/internal/logging"
	"github.com/any-hub/apigate/internal/upstream"
)

// Track 是正在播放曲目的子集。
type Track struct {
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	AlbumArt   string   `json:"album_art,omitempty"`
	URL        string   `json:"url,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	ProgressMs int64    `json:"progress_ms"`
}

// NowPlaying 是一次轮询的结果；Track 为 nil 表示当前没有播放。
type NowPlaying struct {
	Playing   bool      `json:"is_playing"`
	Track     *Track    `json:"track"`
	CheckedAt time.Time `json:"checked_at"`
}

// Poller 周期性读取 /me/player/currently-playing，任何失败都记为“未在播放”。
type Poller struct {
	client   *http.Client
	oauth    *oauth2.Config
	refresh  string
	endpoint string
	interval time.Duration
	clock    clockwork.Clock
	logger   *logrus.Logger

	current atomic.Pointer[NowPlaying]
	polls   atomic.Int64
}

// NewPoller 根据 [Spotify] 配置创建轮询器，interval 为合并后的轮询间隔。
func NewPoller(httpClient *http.Client, cfg config.SpotifyConfig, interval time.Duration, opts ...Option) (*Poller, error) {
	o := getOpts(opts)
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse spotify base url: %w", err)
	}

	p := &Poller{
		client: httpClient,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		refresh:  cfg.RefreshToken,
		endpoint: parsed.JoinPath("me", "player", "currently-playing").String(),
		interval: interval,
		clock:    o.clock,
		logger:   o.logger,
	}
	p.current.Store(&NowPlaying{})
	return p, nil
}

// Interval 返回轮询间隔。
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Polls 返回已完成的轮询次数。
func (p *Poller) Polls() int64 {
	return p.polls.Load()
}

// Current 返回最近一次轮询的快照，尚未轮询时为未播放状态。
func (p *Poller) Current() NowPlaying {
	return *p.current.Load()
}

// Run 立即轮询一次，之后按间隔轮询，直到 ctx 结束。
func (p *Poller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.PollOnce(ctx)
		}
	}
}

// PollOnce 执行一次 token 换取 + 读取，并替换当前快照。
func (p *Poller) PollOnce(ctx context.Context) NowPlaying {
	snapshot, err := p.fetch(ctx)
	snapshot.CheckedAt = p.clock.Now().UTC()
	p.current.Store(&snapshot)
	p.polls.Add(1)

	fields := logging.SourceFields("poll", Key, "")
	fields["is_playing"] = snapshot.Playing
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Debug("now_playing_unavailable")
	} else {
		p.logger.WithFields(fields).Debug("now_playing_updated")
	}
	return snapshot
}

type currentlyPlaying struct {
	IsPlaying  bool  `json:"is_playing"`
	ProgressMs int64 `json:"progress_ms"`
	Item       *struct {
		Name         string `json:"name"`
		DurationMs   int64  `json:"duration_ms"`
		ExternalURLs struct {
			Spotify string `json:"spotify"`
		} `json:"external_urls"`
		Album struct {
			Name   string `json:"name"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"item"`
}

func (p *Poller) fetch(ctx context.Context) (NowPlaying, error) {
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.oauth.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: p.refresh}).Token()
	if err != nil {
		return NowPlaying{}, fmt.Errorf("token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return NowPlaying{}, err
	}
	token.SetAuthHeader(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return NowPlaying{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNoContent {
			return NowPlaying{}, nil
		}
		return NowPlaying{}, upstream.CheckResponse(resp)
	}

	var body currentlyPlaying
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return NowPlaying{}, fmt.Errorf("decode currently playing: %w", err)
	}
	if body.Item == nil {
		return NowPlaying{}, nil
	}

	track := &Track{
		Name:       body.Item.Name,
		Album:      body.Item.Album.Name,
		URL:        body.Item.ExternalURLs.Spotify,
		DurationMs: body.Item.DurationMs,
		ProgressMs: body.ProgressMs,
	}
	for _, artist := range body.Item.Artists {
		track.Artists = append(track.Artists, artist.Name)
	}
	if len(body.Item.Album.Images) > 0 {
		track.AlbumArt = body.Item.Album.Images[0].URL
	}
	return NowPlaying{Playing: body.IsPlaying, Track: track}, nil
}
