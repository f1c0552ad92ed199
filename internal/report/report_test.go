package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/ignite/leadgate/internal/analytics"
	"github.com/ignite/leadgate/internal/lead"
	"github.com/ignite/leadgate/internal/store"
)

func fixture(t *testing.T) (*analytics.Aggregator, *store.Blacklist) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	agg := analytics.New(analytics.NewMemory())
	bad := lead.Placement{Source: "vk", Campaign: "promo", Content: "banner1"}
	for i := 0; i < 8; i++ {
		require.NoError(t, agg.Record(ctx, bad, true, "invalid_phone_qc_2"))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, agg.Record(ctx, bad, false, ""))
	}
	require.NoError(t, agg.Record(ctx, lead.Placement{Source: "yandex"}, true, "duplicate_phone"))
	require.NoError(t, agg.Record(ctx, lead.Placement{Source: "yandex"}, false, ""))

	bl := store.NewBlacklist(client)
	_, err := bl.Add(ctx, bad, "rejection_rate_80.0%_leads_10_rejected_8", 21*24*time.Hour)
	require.NoError(t, err)
	return agg, bl
}

func reportOptions() analytics.ReportOptions {
	return analytics.ReportOptions{TopN: 5, MinLeads: 5, MinRejectionRate: 50}
}

func TestBuild(t *testing.T) {
	agg, bl := fixture(t)
	rep, err := NewBuilder(agg, bl, reportOptions()).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(12), rep.TotalLeads)
	assert.Equal(t, int64(9), rep.RejectedLeads)
	require.Len(t, rep.BadSources, 1)
	assert.Equal(t, "vk:promo:banner1", rep.BadSources[0].Key)
	assert.Equal(t, 80.0, rep.BadSources[0].RejectionRate())
	require.NotEmpty(t, rep.TopReasons)
	assert.Equal(t, "invalid_phone_qc_2", rep.TopReasons[0].Reason)
	require.Len(t, rep.Blacklist, 1)
	assert.Equal(t, "vk:promo:banner1", rep.Blacklist[0].Key)
	assert.False(t, rep.GeneratedAt.IsZero())
}

func TestBuildWithoutBlacklist(t *testing.T) {
	agg, _ := fixture(t)
	rep, err := NewBuilder(agg, nil, reportOptions()).Build(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rep.Blacklist)
	assert.Empty(t, rep.Blacklist)
}

type brokenEntries struct{}

func (brokenEntries) List(context.Context) ([]store.BlacklistEntry, error) {
	return nil, errors.New("redis: connection refused")
}

func TestBuildBlacklistError(t *testing.T) {
	agg, _ := fixture(t)
	_, err := NewBuilder(agg, brokenEntries{}, reportOptions()).Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blacklist list")
}

func TestWriteJSON(t *testing.T) {
	agg, bl := fixture(t)
	rep, err := NewBuilder(agg, bl, reportOptions()).Build(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &body))
	assert.Equal(t, 12.0, body["total_leads"])
	assert.Len(t, body["bad_sources"], 1)
	assert.Len(t, body["blacklist"], 1)
	assert.Contains(t, body, "generated_at")
}

func TestExcel(t *testing.T) {
	agg, bl := fixture(t)
	rep, err := NewBuilder(agg, bl, reportOptions()).Build(context.Background())
	require.NoError(t, err)

	data, err := Excel(rep)
	require.NoError(t, err)

	f, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	for _, name := range []string{SheetSummary, SheetSources, SheetReasons, SheetBlacklist} {
		require.Contains(t, f.Sheet, name)
	}

	sources := f.Sheet[SheetSources]
	require.Len(t, sources.Rows, 2)
	assert.Equal(t, "utm_source", sources.Rows[0].Cells[0].String())
	assert.Equal(t, "vk", sources.Rows[1].Cells[0].String())
	assert.Equal(t, "banner1", sources.Rows[1].Cells[2].String())

	blacklist := f.Sheet[SheetBlacklist]
	require.Len(t, blacklist.Rows, 2)
	assert.Equal(t, "vk:promo:banner1", blacklist.Rows[1].Cells[0].String())
	assert.Equal(t, "rejection_rate_80.0%_leads_10_rejected_8", blacklist.Rows[1].Cells[1].String())
}

func TestFilename(t *testing.T) {
	rep := QualityReport{GeneratedAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
	assert.Equal(t, "quality_report_20260504_093000.xlsx", Filename(rep))
}

type announcer struct {
	mu    sync.Mutex
	links []string
	err   error
}

func (a *announcer) Report(_ context.Context, _ analytics.Report, link string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.links = append(a.links, link)
	return a.err
}

type memArchive struct {
	names []string
	err   error
}

func (m *memArchive) Upload(_ context.Context, name, contentType string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.names = append(m.names, name)
	return "https://files.example/" + name, nil
}

func TestDispatcherRunOnce(t *testing.T) {
	agg, bl := fixture(t)
	ann := &announcer{}
	arc := &memArchive{}
	d := NewDispatcher(NewBuilder(agg, bl, reportOptions()), ann, DispatcherOptions{Archive: arc, ResetAfterDispatch: true})

	require.NoError(t, d.RunOnce(context.Background()))
	require.Len(t, arc.names, 1)
	require.Len(t, ann.links, 1)
	assert.Equal(t, "https://files.example/"+arc.names[0], ann.links[0])

	rep, err := agg.Report(context.Background(), reportOptions())
	require.NoError(t, err)
	assert.Zero(t, rep.TotalLeads, "counters reset after dispatch")
}

func TestDispatcherKeepsCountersWithoutReset(t *testing.T) {
	agg, bl := fixture(t)
	ann := &announcer{}
	d := NewDispatcher(NewBuilder(agg, bl, reportOptions()), ann, DispatcherOptions{})

	require.NoError(t, d.RunOnce(context.Background()))
	assert.Equal(t, []string{""}, ann.links)

	rep, err := agg.Report(context.Background(), reportOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(12), rep.TotalLeads)
}

func TestDispatcherUploadFailureStillAnnounces(t *testing.T) {
	agg, bl := fixture(t)
	ann := &announcer{}
	d := NewDispatcher(NewBuilder(agg, bl, reportOptions()), ann, DispatcherOptions{Archive: &memArchive{err: errors.New("access denied")}})

	require.NoError(t, d.RunOnce(context.Background()))
	assert.Equal(t, []string{""}, ann.links)
}

func TestDispatcherDeliveryFailureKeepsCounters(t *testing.T) {
	agg, bl := fixture(t)
	ann := &announcer{err: errors.New("telegram: 502")}
	d := NewDispatcher(NewBuilder(agg, bl, reportOptions()), ann, DispatcherOptions{ResetAfterDispatch: true})

	err := d.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliver report")

	rep, err := agg.Report(context.Background(), reportOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(12), rep.TotalLeads)
}

func TestS3ArchiveUpload(t *testing.T) {
	var (
		mu          sync.Mutex
		gotPath     string
		gotBody     []byte
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := s3.New(s3.Options{
		Region:       "ru-central1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	})
	arc := NewS3Archive(client, "reports", "leadgate/weekly", 24*time.Hour)

	link, err := arc.Upload(context.Background(), "quality_report_20260504_093000.xlsx", ContentTypeExcel, []byte("xlsx-bytes"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/reports/leadgate/weekly/quality_report_20260504_093000.xlsx", gotPath)
	assert.Equal(t, ContentTypeExcel, contentType)
	assert.Equal(t, "xlsx-bytes", string(gotBody))
	assert.True(t, strings.HasPrefix(link, srv.URL+"/reports/leadgate/weekly/quality_report_20260504_093000.xlsx?"))
	assert.Contains(t, link, "X-Amz-Expires=86400")
}
