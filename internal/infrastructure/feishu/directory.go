// Package feishu implements the account-directory provider on top of the
// Bitable records API: tenant-token auth, cursor pagination, and the
// creation-time window filter.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"AdSweeper/internal/domain"
	"AdSweeper/internal/paging"
	"AdSweeper/internal/ports"

	"golang.org/x/sync/errgroup"
)

const (
	defaultTokenURL = "https://open.feishu.cn/open-apis/auth/v3/app_access_token/internal"
	defaultBaseURL  = "https://open.feishu.cn/open-apis/bitable/v1"

	searchPageSize = 100

	statusCompleted    = "已完成"
	partitionToday     = "Today"
	partitionYesterday = "Yesterday"

	fieldDrama     = "剧名"
	fieldAccount   = "账户"
	fieldSubject   = "主体"
	fieldDate      = "日期"
	fieldStatus    = "当前状态"
	fieldBuildTime = "搭建时间"
)

// Config wires the directory table and its app credentials.
type Config struct {
	AppID     string
	AppSecret string
	AppToken  string
	TableID   string
	BaseURL   string
	TokenURL  string
	Timeout   time.Duration
}

// Directory fetches advertiser accounts from the directory table.
type Directory struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ ports.AccountDirectory = (*Directory)(nil)

// NewDirectory creates a directory provider from config.
func NewDirectory(cfg Config, logger *slog.Logger) *Directory {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Directory{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// FetchAccounts returns the accounts from the Today and Yesterday partitions
// whose build time falls inside [windowStart, windowEnd], deduplicated by
// account id with the first occurrence winning.
func (d *Directory) FetchAccounts(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.Account, error) {
	token, err := d.fetchTenantToken(ctx)
	if err != nil {
		return nil, err
	}

	var today, yesterday []record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		today, err = d.search(gctx, token, partitionToday)
		return err
	})
	g.Go(func() error {
		var err error
		yesterday, err = d.search(gctx, token, partitionYesterday)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := append(today, yesterday...)

	var (
		accounts        []domain.Account
		seen            = map[string]struct{}{}
		skippedByWindow int
	)
	for _, rec := range records {
		if rec.Fields.BuildTime == 0 {
			skippedByWindow++
			continue
		}
		buildTime := time.UnixMilli(rec.Fields.BuildTime)
		if buildTime.Before(windowStart) || buildTime.After(windowEnd) {
			skippedByWindow++
			continue
		}

		drama := firstText(rec.Fields.Drama)
		accountID := firstText(rec.Fields.Account)
		if drama == "" || accountID == "" {
			dataErr := &domain.DataError{Record: rec.RecordID, Reason: "missing drama name or account id"}
			d.warn("skipping malformed directory record", "error", dataErr)
			continue
		}

		if _, ok := seen[accountID]; ok {
			continue
		}
		seen[accountID] = struct{}{}
		accounts = append(accounts, domain.Account{
			ID:        accountID,
			DramaName: drama,
			Subject:   parseSubject(rec.Fields.Subject),
		})
	}

	d.info("directory fetch complete",
		"today", len(today),
		"yesterday", len(yesterday),
		"outside_window", skippedByWindow,
		"accounts", len(accounts))
	return accounts, nil
}

func (d *Directory) fetchTenantToken(ctx context.Context) (string, error) {
	payload := map[string]string{
		"app_id":     d.cfg.AppID,
		"app_secret": d.cfg.AppSecret,
	}

	var out tokenResponse
	if err := d.post(ctx, d.cfg.TokenURL, "", payload, &out); err != nil {
		return "", err
	}
	if out.Code != 0 {
		return "", &domain.UpstreamError{Endpoint: d.cfg.TokenURL, Code: out.Code, Message: out.Msg}
	}

	d.info("tenant token acquired", "expires_in_seconds", out.Expire)
	return out.TenantAccessToken, nil
}

func (d *Directory) search(ctx context.Context, token, partition string) ([]record, error) {
	searchURL := fmt.Sprintf("%s/apps/%s/tables/%s/records/search",
		strings.TrimRight(d.cfg.BaseURL, "/"), d.cfg.AppToken, d.cfg.TableID)

	return paging.AllCursor(ctx, func(ctx context.Context, pageToken string) ([]record, string, error) {
		payload := map[string]any{
			"field_names": []string{fieldDrama, fieldAccount, fieldSubject, fieldDate, fieldStatus, fieldBuildTime},
			"page_size":   searchPageSize,
			"filter": map[string]any{
				"conjunction": "and",
				"conditions": []map[string]any{
					{"field_name": fieldStatus, "operator": "is", "value": []string{statusCompleted}},
					{"field_name": fieldDate, "operator": "is", "value": []string{partition}},
				},
			},
		}
		if pageToken != "" {
			payload["page_token"] = pageToken
		}

		var out searchResponse
		if err := d.post(ctx, searchURL, token, payload, &out); err != nil {
			return nil, "", err
		}
		if out.Code != 0 {
			return nil, "", &domain.UpstreamError{Endpoint: searchURL, Code: out.Code, Message: out.Msg}
		}

		next := ""
		if out.Data.HasMore {
			next = out.Data.PageToken
		}
		return out.Data.Items, next, nil
	})
}

func (d *Directory) post(ctx context.Context, rawURL, bearer string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return &domain.TransportError{Endpoint: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.TransportError{
			Endpoint: rawURL,
			Err:      fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(payload))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (d *Directory) info(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Directory) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

type textValue struct {
	Text string `json:"text"`
}

func firstText(values []textValue) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Text)
}

// parseSubject tolerates the subject column arriving as a plain string or as
// a list of text segments.
func parseSubject(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString)
	}

	var asValues []textValue
	if err := json.Unmarshal(raw, &asValues); err == nil {
		return firstText(asValues)
	}

	return ""
}

type record struct {
	RecordID string       `json:"record_id"`
	Fields   recordFields `json:"fields"`
}

type recordFields struct {
	Drama     []textValue     `json:"剧名"`
	Account   []textValue     `json:"账户"`
	Subject   json.RawMessage `json:"主体"`
	BuildTime int64           `json:"搭建时间"`
}

type searchResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		HasMore   bool     `json:"has_more"`
		PageToken string   `json:"page_token"`
		Items     []record `json:"items"`
		Total     int      `json:"total"`
	} `json:"data"`
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	Expire            int    `json:"expire"`
	TenantAccessToken string `json:"tenant_access_token"`
}
