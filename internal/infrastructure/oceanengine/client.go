// Package oceanengine implements the ad-platform API client: paginated ad and
// material listing plus the three remediation write endpoints.
package oceanengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"AdSweeper/internal/domain"
	"AdSweeper/internal/paging"
	"AdSweeper/internal/ports"
	"AdSweeper/internal/retry"
)

const (
	defaultBaseURL = "https://ad.oceanengine.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/141.0.0.0 Safari/537.36"

	adsListPath         = "/ad/api/promotion/ads/list"
	materialsListPath   = "/ad/api/promotion/materials/list"
	previewPath         = "/ad/api/agw/ad/preview_url"
	materialsDeletePath = "/superior/api/promote/materials/del"
	adsDeletePath       = "/ad/api/promotion/ads/delete"

	createTimeLayout = "2006-01-02 15:04:05"

	adsPageSize       = 10
	materialsPageSize = 50
	materialChunkSize = 50 // max promotion ids per materials-list call
)

// Config tunes the client; zero values fall back to platform defaults.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	FetchConcurrency  int
	RetryAttempts     int
	RetryBaseDelay    time.Duration
}

// Client talks JSON-over-HTTPS to the ad platform. Every call carries the
// advertiser account id and the account's session cookie.
type Client struct {
	baseURL          string
	http             *http.Client
	limiter          *rate.Limiter
	fetchConcurrency int
	retryAttempts    int
	retryBaseDelay   time.Duration
	logger           *slog.Logger
}

var _ ports.AdPlatform = (*Client)(nil)

// NewClient creates a reusable platform client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 3
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = retry.DefaultAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = retry.DefaultBaseDelay
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		http:             &http.Client{Timeout: cfg.Timeout},
		limiter:          rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 2),
		fetchConcurrency: cfg.FetchConcurrency,
		retryAttempts:    cfg.RetryAttempts,
		retryBaseDelay:   cfg.RetryBaseDelay,
		logger:           logger,
	}
}

// ListAds fetches every page of the account's promotions in server order.
func (c *Client) ListAds(ctx context.Context, session domain.Session) ([]domain.Ad, error) {
	items, err := paging.All(ctx, func(ctx context.Context, page int) (paging.Page[adItem], error) {
		body := map[string]any{
			"sort_stat":        "create_time",
			"project_status":   []int{-1},
			"promotion_status": []int{-1},
			"limit":            adsPageSize,
			"page":             page,
			"sort_order":       1,
			"campaign_type":    []int{1},
		}

		label := fmt.Sprintf("list ads account=%s page=%d", session.AccountID, page)
		resp, err := retry.DoWith(ctx, c.logger, label, c.retryAttempts, c.retryBaseDelay, func(ctx context.Context) (adsListResponse, error) {
			var out adsListResponse
			if err := c.do(ctx, http.MethodPost, adsListPath, session, nil, body, &out); err != nil {
				return adsListResponse{}, err
			}
			if out.Code != 0 {
				return adsListResponse{}, &domain.UpstreamError{Endpoint: adsListPath, Code: out.Code, Message: out.Msg}
			}
			return out, nil
		})
		if err != nil {
			return paging.Page[adItem]{}, err
		}

		result := paging.Page[adItem]{Items: resp.Data.Ads}
		if resp.Data.Pagination != nil {
			result.TotalPages = resp.Data.Pagination.TotalPage
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	ads := make([]domain.Ad, 0, len(items))
	for _, item := range items {
		ads = append(ads, item.toDomain())
	}
	return ads, nil
}

// ListMaterials fetches materials for the given promotion ids, split into
// chunks of at most 50 ids with a bounded number of chunks in flight. Pages
// inside a chunk are fetched sequentially.
func (c *Client) ListMaterials(ctx context.Context, session domain.Session, adIDs []string) ([]domain.Material, error) {
	var (
		mu  sync.Mutex
		all []domain.Material
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fetchConcurrency)
	for ci, ids := range chunk(adIDs, materialChunkSize) {
		ci, ids := ci, ids
		g.Go(func() error {
			items, err := c.listMaterialsChunk(gctx, session, ci, ids)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return all, nil
}

func (c *Client) listMaterialsChunk(ctx context.Context, session domain.Session, chunkIndex int, adIDs []string) ([]domain.Material, error) {
	items, err := paging.All(ctx, func(ctx context.Context, page int) (paging.Page[materialItem], error) {
		body := map[string]any{
			"promotion_ids":          adIDs,
			"page":                   page,
			"limit":                  materialsPageSize,
			"fields":                 materialStatFields,
			"sort_stat":              "create_time",
			"sort_order":             1,
			"delivery_package":       []int{},
			"delivery_mode":          []int{3},
			"delivery_mode_internal": []int{3},
			"quick_delivery":         []int{},
			"isAigc":                 false,
			"isAutoStar":             false,
		}

		label := fmt.Sprintf("list materials account=%s chunk=%d page=%d", session.AccountID, chunkIndex, page)
		resp, err := retry.DoWith(ctx, c.logger, label, c.retryAttempts, c.retryBaseDelay, func(ctx context.Context) (materialsListResponse, error) {
			var out materialsListResponse
			if err := c.do(ctx, http.MethodPost, materialsListPath, session, nil, body, &out); err != nil {
				return materialsListResponse{}, err
			}
			if out.Code != 0 {
				return materialsListResponse{}, &domain.UpstreamError{Endpoint: materialsListPath, Code: out.Code, Message: out.Msg}
			}
			return out, nil
		})
		if err != nil {
			return paging.Page[materialItem]{}, err
		}

		result := paging.Page[materialItem]{Items: resp.Data.Materials}
		if resp.Data.Pagination != nil {
			result.TotalPages = resp.Data.Pagination.TotalPage
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	materials := make([]domain.Material, 0, len(items))
	for _, item := range items {
		materials = append(materials, item.toDomain())
	}
	return materials, nil
}

// TriggerPreview asks the platform to regenerate the material's preview.
func (c *Client) TriggerPreview(ctx context.Context, session domain.Session, materialID, adID string) error {
	query := url.Values{}
	query.Set("IdType", "ID_TYPE_MATERIAL")
	query.Set("MaterialId", materialID)
	query.Set("PromotionId", adID)

	label := fmt.Sprintf("preview material=%s", materialID)
	_, err := retry.DoWith(ctx, c.logger, label, c.retryAttempts, c.retryBaseDelay, func(ctx context.Context) (previewResponse, error) {
		var out previewResponse
		if err := c.do(ctx, http.MethodGet, previewPath, session, query, nil, &out); err != nil {
			return previewResponse{}, err
		}
		if out.Code != 0 {
			return previewResponse{}, &domain.UpstreamError{Endpoint: previewPath, Code: out.Code, Message: out.ErrMsg}
		}
		return out, nil
	})
	return err
}

// DeleteMaterials removes the given deletion handles from one promotion in a
// single batched call.
func (c *Client) DeleteMaterials(ctx context.Context, session domain.Session, adID string, handles []string) error {
	body := map[string]any{
		"ids":          handles,
		"promotion_id": adID,
	}

	label := fmt.Sprintf("delete materials ad=%s count=%d", adID, len(handles))
	_, err := retry.DoWith(ctx, c.logger, label, c.retryAttempts, c.retryBaseDelay, func(ctx context.Context) (deleteResponse, error) {
		var out deleteResponse
		if err := c.do(ctx, http.MethodPost, materialsDeletePath, session, nil, body, &out); err != nil {
			return deleteResponse{}, err
		}
		if out.Code != 0 {
			return deleteResponse{}, &domain.UpstreamError{Endpoint: materialsDeletePath, Code: out.Code, Message: out.Msg}
		}
		return out, nil
	})
	return err
}

// DeleteAd removes a whole promotion and, implicitly, all of its materials.
func (c *Client) DeleteAd(ctx context.Context, session domain.Session, adID string) error {
	body := map[string]any{"ids": []string{adID}}

	label := fmt.Sprintf("delete ad=%s", adID)
	_, err := retry.DoWith(ctx, c.logger, label, c.retryAttempts, c.retryBaseDelay, func(ctx context.Context) (deleteResponse, error) {
		var out deleteResponse
		if err := c.do(ctx, http.MethodPost, adsDeletePath, session, nil, body, &out); err != nil {
			return deleteResponse{}, err
		}
		if out.Code != 0 {
			return deleteResponse{}, &domain.UpstreamError{Endpoint: adsDeletePath, Code: out.Code, Message: out.Msg}
		}
		return out, nil
	})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, session domain.Session, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	q := url.Values{}
	for key, values := range query {
		q[key] = values
	}
	q.Set("aadvid", session.AccountID)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+q.Encode(), reqBody)
	if err != nil {
		return fmt.Errorf("%s: new request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Cookie", session.Cookie)

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransportError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.TransportError{
			Endpoint: path,
			Err:      fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(payload))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

// Stat columns the materials-list endpoint expects in every request.
var materialStatFields = []string{
	"stat_cost", "show_cnt", "cpm_platform", "click_cnt", "ctr",
	"cpc_platform", "convert_cnt", "conversion_rate", "conversion_cost",
	"deep_convert_cnt", "deep_convert_cost", "deep_convert_rate",
}

type pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPage  int `json:"total_page"`
	TotalCount int `json:"total_count"`
}

type adItem struct {
	PromotionID   string `json:"promotion_id"`
	PromotionName string `json:"promotion_name"`
	AwemeName     string `json:"aweme_name"`
	CreateTime    string `json:"create_time"`
}

func (a adItem) toDomain() domain.Ad {
	createdAt, err := time.ParseInLocation(createTimeLayout, a.CreateTime, time.Local)
	if err != nil {
		createdAt = time.Time{} // malformed timestamps always lose recency comparisons
	}
	return domain.Ad{ID: a.PromotionID, Title: a.PromotionName, CreatedAt: createdAt}
}

type adsListResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Ads        []adItem    `json:"ads"`
		Pagination *pagination `json:"pagination"`
	} `json:"data"`
}

type materialItem struct {
	MaterialID       string   `json:"material_id"`
	CdpMaterialID    string   `json:"cdp_material_id"`
	PromotionID      string   `json:"promotion_id"`
	StatusFirstName  string   `json:"material_status_first_name"`
	StatusSecondName []string `json:"material_status_second_name"`
	RejectReasonType int      `json:"material_reject_reason_type"`
}

func (m materialItem) toDomain() domain.Material {
	return domain.Material{
		ID:              m.MaterialID,
		DeletionHandle:  m.CdpMaterialID,
		AdID:            m.PromotionID,
		StatusPrimary:   m.StatusFirstName,
		StatusSecondary: m.StatusSecondName,
		RejectReason:    m.RejectReasonType,
	}
}

type materialsListResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Materials  []materialItem `json:"materials"`
		Pagination *pagination    `json:"pagination"`
	} `json:"data"`
}

type previewResponse struct {
	Code   int    `json:"code"`
	ErrMsg string `json:"errmsg"`
}

type deleteResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
