package github

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RepoMeta 是缓存的仓库元数据形状。
type RepoMeta struct {
	FullName    string    `json:"full_name"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	HTMLURL     string    `json:"html_url"`
	Language    string    `json:"language"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	OpenIssues  int       `json:"open_issues"`
	PushedAt    time.Time `json:"pushed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Params 标识一个仓库。
type Params struct {
	Owner string
	Repo  string
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// ErrInvalidName 表示 owner 或 repo 含有 GitHub 不允许的字符。
var ErrInvalidName = errors.New("invalid repository name")

// NewParams 校验并规范化 owner/repo。
func NewParams(owner, repo string) (Params, error) {
	owner = strings.TrimSpace(owner)
	repo = strings.TrimSpace(repo)
	if !namePattern.MatchString(owner) || !namePattern.MatchString(repo) || repo == "." || repo == ".." {
		return Params{}, fmt.Errorf("%w: %q/%q", ErrInvalidName, owner, repo)
	}
	return Params{Owner: strings.ToLower(owner), Repo: strings.ToLower(repo)}, nil
}

// CacheKey = lower(owner)/lower(repo)。
func CacheKey(p Params) string {
	return strings.ToLower(p.Owner) + "/" + strings.ToLower(p.Repo)
}

// ValidateRepo 要求 full_name 非空。
func ValidateRepo(meta RepoMeta) error {
	if strings.TrimSpace(meta.FullName) == "" {
		return errors.New("full_name is empty")
	}
	return nil
}
