package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/models"
	"github.com/bobmcallan/dodgy-dave/internal/session"
	"github.com/bobmcallan/dodgy-dave/internal/storage/memory"
	"github.com/bobmcallan/dodgy-dave/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const barsBody = `{"ticker":"TSLA","results":[{"v":1000,"vw":102.5,"o":100,"c":105,"h":110,"l":95,"t":1704196800000,"n":50}],"status":"OK","request_id":"r1","count":1}`

type stubFetcher struct {
	err error
}

func (f stubFetcher) FetchAll(_ context.Context, tickers []string, _ models.DateRange) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	bodies := make([]string, len(tickers))
	for i := range tickers {
		bodies[i] = barsBody
	}
	return bodies, nil
}

type stubRequester struct {
	report string
	err    error
	gate   chan struct{}
}

func (r stubRequester) RequestReport(_ context.Context, _, _ models.ConversationMessage) (string, error) {
	if r.gate != nil {
		<-r.gate
	}
	return r.report, r.err
}

type harness struct {
	handler  *ReportHandler
	sessions *session.Manager
	cookie   *http.Cookie
}

func newHarness(t *testing.T, fetcher workflow.Fetcher, requester stubRequester, opts ...workflow.Option) *harness {
	t.Helper()
	logger := common.NewSilentLogger()
	sessions := session.NewManager(memory.NewSessionStorage(10), "history", time.Hour, logger)
	wf := workflow.New(fetcher, requester, "system", append([]workflow.Option{workflow.WithLogger(logger)}, opts...)...)
	h := NewReportHandler(logger, NewPageHandler(logger, false), sessions, wf, false)
	return &harness{handler: h, sessions: sessions}
}

func (h *harness) do(t *testing.T, method, target string, form url.Values, fn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	w := httptest.NewRecorder()
	fn(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			h.cookie = c
		}
	}
	return w
}

func (h *harness) page(t *testing.T) string {
	t.Helper()
	w := h.do(t, "GET", "/", nil, h.handler.ServePage)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func (h *harness) addTicker(t *testing.T, ticker string) {
	t.Helper()
	w := h.do(t, "POST", "/tickers", url.Values{"ticker": {ticker}}, h.handler.HandleTickers)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func (h *harness) session(t *testing.T) *models.Session {
	t.Helper()
	require.NotNil(t, h.cookie)
	s, err := h.sessions.Get(context.Background(), h.cookie.Value)
	require.NoError(t, err)
	return s
}

func TestServePage_IssuesSessionAndShowsForm(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{report: "r"})

	body := h.page(t)

	require.NotNil(t, h.cookie)
	assert.True(t, h.cookie.HttpOnly)
	assert.Contains(t, body, "Dodgy Dave's Stock Predictions")
	assert.Contains(t, body, `name="ticker"`)
	assert.Contains(t, body, "Generate Report")
	assert.Contains(t, body, "disabled")
	assert.NotContains(t, body, "Querying Stocks API...")
	assert.NotContains(t, body, `http-equiv="refresh"`)

	// Same cookie, same session.
	id := h.cookie.Value
	h.page(t)
	assert.Equal(t, id, h.cookie.Value)
}

func TestServePage_UnknownPath(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{})
	w := h.do(t, "GET", "/nope", nil, h.handler.ServePage)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleTickers(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{})
	h.page(t)

	h.addTicker(t, " tsla ")
	h.addTicker(t, "aapl")
	assert.Equal(t, []string{"TSLA", "AAPL"}, h.session(t).Tickers)

	body := h.page(t)
	assert.Contains(t, body, "<span>TSLA</span>, <span>AAPL</span>")
	assert.NotContains(t, body, "disabled")
}

func TestHandleTickers_TooShort(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{})
	h.page(t)

	h.addTicker(t, "ab")

	s := h.session(t)
	assert.Empty(t, s.Tickers)
	assert.Equal(t, models.TooShortMessage, s.Error)

	body := h.page(t)
	assert.Contains(t, body, "ticker-label-error")
	assert.Contains(t, body, "You must add at least one ticker.")
	assert.Contains(t, body, `value="ab"`)
}

func TestHandleTickers_ListFull(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{})
	for _, ticker := range []string{"tsla", "aapl", "msft", "goog"} {
		h.addTicker(t, ticker)
	}

	s := h.session(t)
	assert.Equal(t, []string{"TSLA", "AAPL", "MSFT"}, s.Tickers)
	assert.Equal(t, models.ListFullMessage, s.Error)
}

func TestHandleTickers_RejectsGET(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{})
	w := h.do(t, "GET", "/tickers", nil, h.handler.HandleTickers)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleGenerate_Report(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, stubFetcher{}, stubRequester{report: "**Buy** the dip.", gate: gate})
	h.addTicker(t, "tsla")

	w := h.do(t, "POST", "/generate", url.Values{}, h.handler.HandleGenerate)
	require.Equal(t, http.StatusSeeOther, w.Code)

	// Completion is held open, so the page shows the loading panel.
	assert.Equal(t, models.StateLoading, h.session(t).State())
	body := h.page(t)
	assert.Contains(t, body, "Querying Stocks API...")
	assert.Contains(t, body, `http-equiv="refresh"`)
	assert.NotContains(t, body, `name="ticker"`)

	close(gate)
	h.handler.Wait()

	s := h.session(t)
	assert.Equal(t, models.StateReport, s.State())
	assert.Equal(t, "**Buy** the dip.", s.Report)

	body = h.page(t)
	assert.Contains(t, body, "Your Report")
	assert.Contains(t, body, "<strong>Buy</strong> the dip.")
	assert.NotContains(t, body, "Querying Stocks API...")
	assert.NotContains(t, body, `name="ticker"`)
}

func TestHandleGenerate_FailureShowsGenericError(t *testing.T) {
	h := newHarness(t, stubFetcher{err: errors.New("proxy down")}, stubRequester{report: "never"})
	h.addTicker(t, "tsla")

	h.do(t, "POST", "/generate", url.Values{}, h.handler.HandleGenerate)
	h.handler.Wait()

	s := h.session(t)
	assert.Equal(t, models.StateIdle, s.State())
	assert.Equal(t, models.GenerationFailedMessage, s.Error)
	assert.Empty(t, s.Report)

	body := h.page(t)
	assert.Contains(t, body, "There was an error fetching stock data.")
	assert.NotContains(t, body, "proxy down")
}

func TestHandleGenerate_IgnoredWithoutTickers(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{report: "r"})
	h.page(t)

	w := h.do(t, "POST", "/generate", url.Values{}, h.handler.HandleGenerate)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	h.handler.Wait()

	assert.Equal(t, models.StateIdle, h.session(t).State())
}

func TestHandleGenerate_IgnoredWhileLoading(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, stubFetcher{}, stubRequester{report: "r", gate: gate})
	h.addTicker(t, "tsla")

	h.do(t, "POST", "/generate", url.Values{}, h.handler.HandleGenerate)
	w := h.do(t, "POST", "/generate", url.Values{}, h.handler.HandleGenerate)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	// Tickers cannot be added mid-generation either.
	h.addTicker(t, "aapl")

	close(gate)
	h.handler.Wait()

	s := h.session(t)
	assert.Equal(t, []string{"TSLA"}, s.Tickers)
	// History prompt plus exactly one formatted summary.
	assert.Len(t, s.Messages, 2)
}

func TestHandleReset(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{report: "r"})
	h.addTicker(t, "tsla")
	h.do(t, "POST", "/generate", url.Values{}, h.handler.HandleGenerate)
	h.handler.Wait()
	require.Equal(t, models.StateReport, h.session(t).State())

	w := h.do(t, "POST", "/reset", url.Values{}, h.handler.HandleReset)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	s := h.session(t)
	assert.Equal(t, models.StateIdle, s.State())
	assert.Empty(t, s.Tickers)
	assert.Len(t, s.Messages, 2)
}

func TestHandleSessionAPI(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{report: "Buy the dip."})

	w := h.do(t, "GET", "/api/session", nil, h.handler.HandleSessionAPI)
	assert.Equal(t, http.StatusNotFound, w.Code)

	h.addTicker(t, "tsla")
	h.do(t, "POST", "/generate", url.Values{}, h.handler.HandleGenerate)
	h.handler.Wait()

	w = h.do(t, "GET", "/api/session", nil, h.handler.HandleSessionAPI)
	require.Equal(t, http.StatusOK, w.Code)

	var view map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "report", view["state"])
	assert.Equal(t, "Buy the dip.", view["report"])
	assert.Equal(t, []any{"TSLA"}, view["tickers"])
	assert.NotEmpty(t, view["generated_at"])
	assert.NotContains(t, w.Body.String(), "messages")
}

func TestHandlers_ConcurrentSessions(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{report: "r"})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := &harness{handler: h.handler, sessions: h.sessions}
			local.addTicker(t, "tsla")
			local.do(t, "POST", "/generate", url.Values{}, local.handler.HandleGenerate)
		}()
	}
	wg.Wait()
	h.handler.Wait()
}

func TestServePage_ExpiresAbandonedGeneration(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{report: "r"}, workflow.WithStaleAfter(time.Minute))
	h.page(t)

	// A session left Loading by a process that died mid-generation.
	_, err := h.sessions.Update(context.Background(), h.cookie.Value, func(s *models.Session) error {
		s.Tickers = []string{"TSLA"}
		s.Loading = true
		s.LoadingSince = time.Now().Add(-2 * time.Minute)
		return nil
	})
	require.NoError(t, err)

	body := h.page(t)

	assert.NotContains(t, body, "Querying Stocks API...")
	assert.Contains(t, body, models.GenerationFailedMessage)

	s := h.session(t)
	assert.Equal(t, models.StateIdle, s.State())
	assert.Equal(t, models.KindAbandoned, s.LastErrorKind)
	assert.Equal(t, []string{"TSLA"}, s.Tickers)
	assert.True(t, s.CanGenerate())
}

func TestServePage_KeepsRecentLoading(t *testing.T) {
	h := newHarness(t, stubFetcher{}, stubRequester{report: "r"}, workflow.WithStaleAfter(time.Minute))
	h.page(t)

	_, err := h.sessions.Update(context.Background(), h.cookie.Value, func(s *models.Session) error {
		s.Tickers = []string{"TSLA"}
		s.Loading = true
		s.LoadingSince = time.Now()
		return nil
	})
	require.NoError(t, err)

	body := h.page(t)

	assert.Contains(t, body, "Querying Stocks API...")
	assert.Equal(t, models.StateLoading, h.session(t).State())
}
