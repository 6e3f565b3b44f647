package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AdSweeper/internal/domain"
)

type searchRequest struct {
	PageToken string `json:"page_token"`
	PageSize  int    `json:"page_size"`
	Filter    struct {
		Conjunction string `json:"conjunction"`
		Conditions  []struct {
			FieldName string   `json:"field_name"`
			Operator  string   `json:"operator"`
			Value     []string `json:"value"`
		} `json:"conditions"`
	} `json:"filter"`
}

func partitionOf(t *testing.T, req searchRequest) string {
	t.Helper()
	for _, cond := range req.Filter.Conditions {
		if cond.FieldName == fieldDate {
			require.Len(t, cond.Value, 1)
			return cond.Value[0]
		}
	}
	t.Fatal("search request carries no date condition")
	return ""
}

func recordJSON(id, drama, account string, subject any, buildTime int64) string {
	fields := map[string]any{
		fieldBuildTime: buildTime,
	}
	if drama != "" {
		fields[fieldDrama] = []map[string]string{{"text": drama}}
	}
	if account != "" {
		fields[fieldAccount] = []map[string]string{{"text": account}}
	}
	if subject != nil {
		fields[fieldSubject] = subject
	}
	rec, _ := json.Marshal(map[string]any{"record_id": id, "fields": fields})
	return string(rec)
}

func newTestDirectory(t *testing.T, pages map[string][]string) *Directory {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cli_test", body["app_id"])
		assert.Equal(t, "secret_test", body["app_secret"])
		_, _ = w.Write([]byte(`{"code":0,"tenant_access_token":"t-abc","expire":7200}`))
	})

	var mu sync.Mutex
	served := map[string]int{}
	mux.HandleFunc("/apps/app-token/tables/tbl-1/records/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t-abc", r.Header.Get("Authorization"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, searchPageSize, req.PageSize)
		assert.Equal(t, "and", req.Filter.Conjunction)

		partition := partitionOf(t, req)
		mu.Lock()
		page := served[partition]
		served[partition]++
		mu.Unlock()

		partitionPages := pages[partition]
		if len(partitionPages) == 0 {
			_, _ = w.Write([]byte(`{"code":0,"data":{"has_more":false,"page_token":"","items":[]}}`))
			return
		}
		require.Less(t, page, len(partitionPages), "unexpected extra page request for %s", partition)
		if page > 0 {
			assert.Equal(t, fmt.Sprintf("%s-cursor-%d", partition, page), req.PageToken)
		}

		hasMore := page < len(partitionPages)-1
		next := ""
		if hasMore {
			next = fmt.Sprintf("%s-cursor-%d", partition, page+1)
		}
		fmt.Fprintf(w, `{"code":0,"data":{"has_more":%t,"page_token":%q,"items":[%s]}}`,
			hasMore, next, partitionPages[page])
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewDirectory(Config{
		AppID:     "cli_test",
		AppSecret: "secret_test",
		AppToken:  "app-token",
		TableID:   "tbl-1",
		BaseURL:   server.URL,
		TokenURL:  server.URL + "/token",
	}, nil)
}

func TestFetchAccountsMergesPartitionsAndPaginates(t *testing.T) {
	t.Parallel()

	now := time.Now()
	inWindow := now.Add(-time.Hour).UnixMilli()

	dir := newTestDirectory(t, map[string][]string{
		partitionToday: {
			recordJSON("r1", "春天", "1001", "欣雅", inWindow),
			recordJSON("r2", "夏夜", "1002", []map[string]string{{"text": "星辰"}}, inWindow),
		},
		partitionYesterday: {
			recordJSON("r3", "秋收", "1003", nil, inWindow),
		},
	})

	accounts, err := dir.FetchAccounts(context.Background(), now.Add(-2*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	assert.Equal(t, domain.Account{ID: "1001", DramaName: "春天", Subject: "欣雅"}, accounts[0])
	assert.Equal(t, domain.Account{ID: "1002", DramaName: "夏夜", Subject: "星辰"}, accounts[1])
	assert.Equal(t, domain.Account{ID: "1003", DramaName: "秋收"}, accounts[2])
}

func TestFetchAccountsFiltersByWindow(t *testing.T) {
	t.Parallel()

	now := time.Now()
	dir := newTestDirectory(t, map[string][]string{
		partitionToday: {
			recordJSON("r1", "春天", "1001", nil, now.Add(-10*time.Minute).UnixMilli()),
			recordJSON("r2", "春天", "1002", nil, now.Add(-3*time.Hour).UnixMilli()),
			recordJSON("r3", "春天", "1003", nil, 0),
		},
		partitionYesterday: {},
	})

	accounts, err := dir.FetchAccounts(context.Background(), now.Add(-time.Hour), now)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "1001", accounts[0].ID)
}

func TestFetchAccountsDeduplicatesFirstWins(t *testing.T) {
	t.Parallel()

	now := time.Now()
	inWindow := now.Add(-time.Hour).UnixMilli()

	dir := newTestDirectory(t, map[string][]string{
		partitionToday: {
			recordJSON("r1", "春天", "1001", nil, inWindow),
		},
		partitionYesterday: {
			recordJSON("r2", "旧剧", "1001", nil, inWindow),
		},
	})

	accounts, err := dir.FetchAccounts(context.Background(), now.Add(-2*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "春天", accounts[0].DramaName, "first occurrence keeps its drama name")
}

func TestFetchAccountsSkipsMalformedRecords(t *testing.T) {
	t.Parallel()

	now := time.Now()
	inWindow := now.Add(-time.Hour).UnixMilli()

	dir := newTestDirectory(t, map[string][]string{
		partitionToday: {
			recordJSON("r1", "", "1001", nil, inWindow) + "," +
				recordJSON("r2", "春天", "", nil, inWindow) + "," +
				recordJSON("r3", "春天", "1003", nil, inWindow),
		},
		partitionYesterday: {},
	})

	accounts, err := dir.FetchAccounts(context.Background(), now.Add(-2*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "1003", accounts[0].ID)
}

func TestFetchAccountsFollowsCursor(t *testing.T) {
	t.Parallel()

	now := time.Now()
	inWindow := now.Add(-time.Hour).UnixMilli()

	dir := newTestDirectory(t, map[string][]string{
		partitionToday: {
			recordJSON("r1", "春天", "1001", nil, inWindow),
			recordJSON("r2", "春天", "1002", nil, inWindow),
		},
		partitionYesterday: {},
	})

	accounts, err := dir.FetchAccounts(context.Background(), now.Add(-2*time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestFetchTenantTokenUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":99991663,"msg":"app secret invalid"}`))
	}))
	t.Cleanup(server.Close)

	dir := NewDirectory(Config{
		AppID:    "cli_test",
		BaseURL:  server.URL,
		TokenURL: server.URL + "/token",
	}, nil)

	_, err := dir.FetchAccounts(context.Background(), time.Now().Add(-time.Hour), time.Now())
	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 99991663, upstream.Code)
}

func TestParseSubjectShapes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", parseSubject(nil))
	assert.Equal(t, "欣雅", parseSubject(json.RawMessage(`" 欣雅 "`)))
	assert.Equal(t, "星辰", parseSubject(json.RawMessage(`[{"text":"星辰"},{"text":"b"}]`)))
	assert.Equal(t, "", parseSubject(json.RawMessage(`123`)))
}
