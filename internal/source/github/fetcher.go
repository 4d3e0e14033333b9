package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/apigate/internal/config"
	"github.com/any-hub/apigate/internal/logging"
	"github.com/any-hub/apigate/internal/policy"
	"github.com/any-hub/apigate/internal/upstream"
)

// Fetcher 通过 GitHub REST API 读取仓库元数据。
type Fetcher struct {
	client *gh.Client
	logger *logrus.Logger
}

// NewFetcher 使用共享 http.Client 构建 go-github 客户端，Token 为空时匿名访问。
func NewFetcher(httpClient *http.Client, cfg config.GitHubConfig, logger *logrus.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	client := gh.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = parsed
	}
	return &Fetcher{client: client, logger: logger}, nil
}

// FetchRepo 执行一次 GET /repos/{owner}/{repo}。
func (f *Fetcher) FetchRepo(ctx context.Context, p Params) (RepoMeta, error) {
	repo, _, err := f.client.Repositories.Get(ctx, p.Owner, p.Repo)
	if err != nil {
		return RepoMeta{}, f.classify(p, err)
	}
	return RepoMeta{
		FullName:    repo.GetFullName(),
		Name:        repo.GetName(),
		Description: repo.GetDescription(),
		HTMLURL:     repo.GetHTMLURL(),
		Language:    repo.GetLanguage(),
		Stars:       repo.GetStargazersCount(),
		Forks:       repo.GetForksCount(),
		OpenIssues:  repo.GetOpenIssuesCount(),
		PushedAt:    repo.GetPushedAt().Time,
		UpdatedAt:   repo.GetUpdatedAt().Time,
	}, nil
}

// classify 把 go-github 的错误映射为 upstream.StatusError，限流错误额外记录重置时间。
func (f *Fetcher) classify(p Params, err error) error {
	fields := logging.SourceFields("github_fetch", Key, CacheKey(p))

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		fields["reset_at"] = rateErr.Rate.Reset.Time
		fields["limit"] = rateErr.Rate.Limit
		f.logger.WithFields(fields).Warn("github_rate_limited")
		return fmt.Errorf("%w: %v", upstream.FromResponse(http.StatusForbidden, []byte(rateErr.Message)), err)
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			fields["retry_after"] = abuseErr.RetryAfter.String()
		}
		f.logger.WithFields(fields).Warn("github_secondary_rate_limited")
		return fmt.Errorf("%w: %v", upstream.FromResponse(http.StatusForbidden, []byte(abuseErr.Message)), err)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return upstream.FromResponse(respErr.Response.StatusCode, []byte(respErr.Message))
	}

	return fmt.Errorf("%w: %v", policy.ErrUpstreamFailure, err)
}
