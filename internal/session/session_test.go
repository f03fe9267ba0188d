package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dxboy266/The-Stoic-Leek/internal/gateway"
	"github.com/Dxboy266/The-Stoic-Leek/internal/importer"
	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
	"github.com/Dxboy266/The-Stoic-Leek/internal/testutil"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeQuotes struct {
	mu      sync.Mutex
	records map[string]models.ValuationRecord
	search  map[string][]models.SearchResult
	err     error
}

func (f *fakeQuotes) Fetch(_ context.Context, code string) (models.ValuationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.ValuationRecord{}, f.err
	}
	rec, ok := f.records[code]
	if !ok {
		return models.ValuationRecord{}, errors.New("not found")
	}
	return rec, nil
}

func (f *fakeQuotes) FetchBatch(_ context.Context, codes []string) ([]models.ValuationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.ValuationRecord
	for _, c := range codes {
		if rec, ok := f.records[c]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeQuotes) Search(_ context.Context, query string) ([]models.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.search[query], nil
}

type fakeRecognizer struct {
	funds   []models.RecognizedFund
	err     error
	lastReq gateway.RecognizeRequest
}

func (f *fakeRecognizer) Recognize(_ context.Context, req gateway.RecognizeRequest) ([]models.RecognizedFund, error) {
	f.lastReq = req
	return f.funds, f.err
}

type fakeBlob struct {
	mu      sync.Mutex
	stored  *models.Settings
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeBlob) Load(_ context.Context) (*models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.stored == nil {
		return &models.Settings{}, nil
	}
	return f.stored.Clone(), nil
}

func (f *fakeBlob) Save(_ context.Context, settings *models.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stored = settings.Clone()
	f.saves++
	return nil
}

func (f *fakeBlob) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeBlob) lastSaved() *models.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored
}

func rec(code, estimated, previous string) models.ValuationRecord {
	return models.ValuationRecord{
		Code:         code,
		Name:         "fund " + code,
		EstimatedNAV: dec(estimated),
		PreviousNAV:  dec(previous),
	}
}

func newTestSession(quotes *fakeQuotes, recognizer *fakeRecognizer, blob *fakeBlob) *Session {
	return New(quotes, recognizer, blob, 20*time.Millisecond, time.Second, zap.NewNop().Sugar())
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestLoadSeedsHoldings(t *testing.T) {
	blob := &fakeBlob{stored: &models.Settings{
		TotalAssets: dec("50000"),
		Funds: []models.Holding{
			{Code: "110022", Shares: dec("100")},
		},
	}}
	s := newTestSession(&fakeQuotes{}, &fakeRecognizer{}, blob)

	require.NoError(t, s.Load(context.Background()))

	h := s.Holdings()
	require.Len(t, h, 1)
	assert.Equal(t, "110022", h[0].Code)
	assert.True(t, s.Settings().TotalAssets.Equal(dec("50000")))
}

func TestUnloadedSessionNeverPersists(t *testing.T) {
	blob := &fakeBlob{stored: &models.Settings{
		Funds: []models.Holding{{Code: "110022", Shares: dec("100")}},
	}}
	s := newTestSession(&fakeQuotes{}, &fakeRecognizer{}, blob)

	// A save triggered before Load must not overwrite the stored blob.
	s.UpdateSettings(&models.Settings{})
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, blob.saveCount())
	require.NotNil(t, blob.lastSaved())
	assert.Len(t, blob.lastSaved().Funds, 1, "stored blob must survive an unloaded session")
}

func TestAddEditDelete(t *testing.T) {
	quotes := &fakeQuotes{records: map[string]models.ValuationRecord{
		"110022": rec("110022", "1.2345", "1.2000"),
	}}
	blob := &fakeBlob{}
	s := newTestSession(quotes, &fakeRecognizer{}, blob)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.AddHolding("110022", dec("100")))
	testutil.AssertAppError(t, s.AddHolding("110022", dec("500")), "DUPLICATE_HOLDING")
	testutil.AssertAppError(t, s.EditHolding("110022", dec("-5")), "NEGATIVE_SHARES")

	h := s.Holdings()
	require.Len(t, h, 1)
	assert.True(t, h[0].Shares.Equal(dec("100")))

	s.DeleteHolding("110022")
	s.DeleteHolding("110022") // idempotent
	assert.Empty(t, s.Holdings())
}

func TestMutationTriggersRefreshAndPersist(t *testing.T) {
	quotes := &fakeQuotes{records: map[string]models.ValuationRecord{
		"161725": rec("161725", "1.2345", "1.2000"),
	}}
	blob := &fakeBlob{}
	s := newTestSession(quotes, &fakeRecognizer{}, blob)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.AddHolding("161725", dec("100")))

	waitFor(t, func() bool {
		v := s.View()
		return len(v.PerHolding) == 1 && !v.PerHolding[0].Pending
	}, "valuation refresh after mutation did not land")

	v := s.View()
	assert.True(t, v.Totals.MarketValue.Equal(dec("123.45")))
	assert.True(t, v.Totals.DayChange.Equal(dec("3.45")))

	waitFor(t, func() bool { return blob.saveCount() == 1 }, "debounced persistence write did not land")
	saved := blob.lastSaved()
	require.Len(t, saved.Funds, 1)
	assert.Equal(t, "161725", saved.Funds[0].Code)
}

func TestRefreshFailureKeepsView(t *testing.T) {
	quotes := &fakeQuotes{records: map[string]models.ValuationRecord{
		"161725": rec("161725", "1.5", "1.4"),
	}}
	s := newTestSession(quotes, &fakeRecognizer{}, &fakeBlob{})
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.AddHolding("161725", dec("10")))
	require.NoError(t, s.Refresh(context.Background()))

	quotes.mu.Lock()
	quotes.err = errors.New("gateway down")
	quotes.mu.Unlock()

	require.Error(t, s.Refresh(context.Background()))

	v := s.View()
	require.Len(t, v.PerHolding, 1)
	assert.False(t, v.PerHolding[0].Pending, "failed refresh must not clear cached valuations")
	assert.True(t, v.Totals.MarketValue.Equal(dec("15")))
}

func TestImportHoldings(t *testing.T) {
	blob := &fakeBlob{}
	s := newTestSession(&fakeQuotes{}, &fakeRecognizer{}, blob)
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.AddHolding("000001", dec("200")))

	added, updated, err := s.ImportHoldings([]importer.Entry{
		{Code: "000001"},
		{Code: "000002", Shares: dec("300")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, updated)

	h := s.Holdings()
	require.Len(t, h, 2)
	assert.True(t, h[0].Shares.Equal(dec("200")), "import without shares must keep the existing position")
	assert.True(t, h[1].Shares.Equal(dec("300")))
}

func TestConcurrentImportsNeverDropAcceptedAdds(t *testing.T) {
	s := newTestSession(&fakeQuotes{}, &fakeRecognizer{}, &fakeBlob{})
	require.NoError(t, s.Load(context.Background()))

	// A batch of import entries disjoint from the codes added below. The
	// merge-and-replace must not clobber an add that lands between an
	// import's snapshot and its replace.
	batch := make([]importer.Entry, 0, 10)
	for i := 0; i < 10; i++ {
		batch = append(batch, importer.Entry{Code: fmt.Sprintf("9%05d", i), Shares: dec("1")})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if _, _, err := s.ImportHoldings(batch); err != nil {
				t.Errorf("import failed: %v", err)
				return
			}
		}
	}()

	const adds = 500
	for i := 0; i < adds; i++ {
		require.NoError(t, s.AddHolding(fmt.Sprintf("%06d", i), dec("1")))
	}
	<-done

	got := make(map[string]bool)
	for _, h := range s.Holdings() {
		got[h.Code] = true
	}
	var lost int
	for i := 0; i < adds; i++ {
		if !got[fmt.Sprintf("%06d", i)] {
			lost++
		}
	}
	assert.Zero(t, lost, "accepted adds vanished under concurrent imports")
}

func TestSettingsReadableAfterFailedLoad(t *testing.T) {
	blob := &fakeBlob{loadErr: errors.New("store unreachable")}
	s := newTestSession(&fakeQuotes{}, &fakeRecognizer{}, blob)
	require.Error(t, s.Load(context.Background()))

	s.UpdateSettings(&models.Settings{TotalAssets: dec("50000")})
	require.NoError(t, s.AddHolding("110022", dec("100")))

	// In-memory state stays authoritative for reads.
	got := s.Settings()
	assert.True(t, got.TotalAssets.Equal(dec("50000")))
	require.Len(t, got.Funds, 1)
	assert.Equal(t, "110022", got.Funds[0].Code)

	// Persistence stays suppressed until a load has completed.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, blob.saveCount())
}

func TestRecognizeScreenshot(t *testing.T) {
	quotes := &fakeQuotes{search: map[string][]models.SearchResult{
		"银华集成电路": {{Code: "013841", Name: "银华集成电路混合C"}},
	}}
	recognizer := &fakeRecognizer{funds: []models.RecognizedFund{
		{Name: "银华集成电路混合C", Code: "013840", Shares: dec("100")},
		{Name: "无代码基金"},
	}}
	s := newTestSession(quotes, recognizer, &fakeBlob{})
	require.NoError(t, s.Load(context.Background()))

	s.UpdateSettings(&models.Settings{AISettings: &models.AISettings{
		ActiveProvider: "siliconflow",
		Providers: []models.AIProviderConfig{{
			ID:          "siliconflow",
			BaseURL:     "https://api.siliconflow.cn/v1",
			APIKey:      "sk-test",
			VisionModel: "Qwen/Qwen2-VL-72B-Instruct",
		}},
	}})

	funds, err := s.RecognizeScreenshot(context.Background(), "base64image")
	require.NoError(t, err)

	require.Len(t, funds, 1, "entries without a resolvable code are dropped")
	assert.Equal(t, "013841", funds[0].Code, "search result corrects the recognized code")

	assert.Equal(t, "https://api.siliconflow.cn/v1", recognizer.lastReq.BaseURL)
	assert.Equal(t, "sk-test", recognizer.lastReq.APIKey)
	assert.Equal(t, "Qwen/Qwen2-VL-72B-Instruct", recognizer.lastReq.Model)
}

func TestRecognizeFailureLeavesHoldingsUntouched(t *testing.T) {
	recognizer := &fakeRecognizer{err: errors.New("vision model unavailable")}
	s := newTestSession(&fakeQuotes{}, recognizer, &fakeBlob{})
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.AddHolding("110022", dec("100")))

	_, err := s.RecognizeScreenshot(context.Background(), "img")
	require.Error(t, err)
	assert.Len(t, s.Holdings(), 1)
}

func TestMutationBurstCoalescesPersistence(t *testing.T) {
	blob := &fakeBlob{}
	s := newTestSession(&fakeQuotes{}, &fakeRecognizer{}, blob)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.AddHolding("110022", decimal.Zero))
	for _, shares := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, s.EditHolding("110022", dec(shares)))
	}

	waitFor(t, func() bool { return blob.saveCount() > 0 }, "no persistence write happened")
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, blob.saveCount(), "a mutation burst inside the debounce window must produce one write")
	saved := blob.lastSaved()
	require.Len(t, saved.Funds, 1)
	assert.True(t, saved.Funds[0].Shares.Equal(dec("5")), "the write must carry the final state")
}

func TestCloseFlushes(t *testing.T) {
	blob := &fakeBlob{}
	s := New(&fakeQuotes{}, &fakeRecognizer{}, blob, time.Hour, time.Second, zap.NewNop().Sugar())
	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.AddHolding("110022", dec("1")))

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, blob.saveCount())
}
