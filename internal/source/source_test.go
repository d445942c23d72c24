package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/fetch"
	"github.com/gridscope/besstrack/internal/record"
)

func testFetchClient(t *testing.T) *fetch.Client {
	t.Helper()
	client, err := fetch.NewClient(fetch.Config{
		UserAgent:      "besstrack-test/1.0",
		Timeout:        5 * time.Second,
		MaxRetries:     1,
		BackoffInitial: time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func srcConfig(name, pageURL string) config.SourceConfig {
	return config.SourceConfig{Name: name, URL: pageURL, Enabled: true}
}

func TestEDFParsesSiteTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table><tbody>
			<tr><td><a href="/our-sites/sundon/">Sundon BESS</a></td><td>In construction</td>
				<td>extra</td><td>Bedfordshire</td><td>50MW</td></tr>
			<tr><td><a href="/our-sites/braintree/">Braintree Storage</a></td><td>Operational</td>
				<td>extra</td><td>Essex</td><td>25MW</td></tr>
		</tbody></table></body></html>`))
	}))
	defer srv.Close()

	s := NewEDF(testFetchClient(t), srcConfig("EDF", srv.URL), zap.NewNop())
	rows, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Sundon BESS", rows[0].SiteName)
	assert.Equal(t, record.StatusInConstruction, rows[0].Status)
	assert.Equal(t, "Bedfordshire", rows[0].Region)
	require.NotNil(t, rows[0].CapacityMWNumeric)
	assert.Equal(t, 50.0, *rows[0].CapacityMWNumeric)
	assert.Contains(t, rows[0].URL, "/our-sites/sundon/")
	assert.Equal(t, record.StatusOperational, rows[1].Status)
}

func TestEDFFallsBackToSiteLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/our-sites/">All sites</a>
				<a href="/our-sites/?view=list&amp;project_types=battery-storage">List view</a>
			<a href="/our-sites/sundon/overview">Sundon BESS</a>
			<a href="/our-sites/sundon/overview">Sundon BESS</a>
		</body></html>`))
	}))
	defer srv.Close()

	s := NewEDF(testFetchClient(t), srcConfig("EDF", srv.URL), zap.NewNop())
	rows, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sundon BESS", rows[0].SiteName)
	assert.Equal(t, record.StatusPlanned, rows[0].Status)
}

func TestBritishRenewablesHeadings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<h2>Mill Farm Battery Park, Lancashire</h2>
			<p>A 49.9MW storage scheme.</p>
			<h2>About us</h2>
			<p>Company background.</p>
			<h3>Dyce BESS, Aberdeenshire</h3>
			<p>Capacity of 100MW under development.</p>
		</body></html>`))
	}))
	defer srv.Close()

	s := NewBritishRenewables(testFetchClient(t), srcConfig("British Renewables", srv.URL), zap.NewNop())
	rows, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Mill Farm Battery Park", rows[0].SiteName)
	assert.Equal(t, "Lancashire", rows[0].Region)
	require.NotNil(t, rows[0].CapacityMWNumeric)
	assert.Equal(t, 49.9, *rows[0].CapacityMWNumeric)
	assert.Equal(t, "Dyce BESS", rows[1].SiteName)
}

func TestRootPowerCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article>
			<a href="/projects/tollgate-bess/">Tollgate BESS 57MW</a>
			<p>Under construction in Essex.</p>
		</article>
		<a href="/about/">About</a>
		</body></html>`))
	}))
	defer srv.Close()

	s := NewRootPower(testFetchClient(t), srcConfig("Root-Power", srv.URL), zap.NewNop())
	rows, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Tollgate BESS", rows[0].SiteName)
	require.NotNil(t, rows[0].CapacityMWNumeric)
	assert.Equal(t, 57.0, *rows[0].CapacityMWNumeric)
	assert.Equal(t, record.StatusInConstruction, rows[0].Status)
}

func TestFidraHeadingsWithDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<h2>Thorpe Marsh Energy Park</h2>
			<p>Size: 1.45GW</p>
			<p>Location: South Yorkshire</p>
			<h2>West Burton C Battery</h2>
			<p>Size: 500MW</p>
			<p>Location: Nottinghamshire</p>
		</body></html>`))
	}))
	defer srv.Close()

	s := NewFidra(testFetchClient(t), srcConfig("Fidra Energy", srv.URL), zap.NewNop())
	rows, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].CapacityMWNumeric)
	assert.Equal(t, 1450.0, *rows[0].CapacityMWNumeric)
	assert.Equal(t, "South Yorkshire", rows[0].Region)
	assert.Equal(t, "Nottinghamshire", rows[1].Region)
}

func TestEirGridReferenceRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/docs/contracted-generators-q2.pdf">Contracted Generators Q2</a>
			<a href="/customer-and-industry/connections">Connection offers</a>
			<a href="/privacy">Privacy</a>
		</body></html>`))
	}))
	defer srv.Close()

	cfg := srcConfig("EirGrid", srv.URL)
	cfg.Country = "Ireland"
	s := NewEirGrid(testFetchClient(t), cfg, zap.NewNop())
	rows, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Ireland", rows[0].Country)
	assert.Equal(t, record.StatusReference, rows[0].Status)
}

func TestBuildHonorsEnabledFlag(t *testing.T) {
	cfgs := map[string]config.SourceConfig{
		"uk_repd":   {Name: "REPD", URL: "https://example.org/repd", Enabled: true},
		"edf_re_uk": {Name: "EDF", URL: "https://example.org/edf", Enabled: false},
		"eirgrid":   {Name: "EirGrid", URL: "https://example.org/eirgrid", Enabled: true},
	}
	sources := Build(testFetchClient(t), cfgs, zap.NewNop())
	require.Len(t, sources, 2)
	assert.Equal(t, "uk_repd", sources[0].Name())
	assert.Equal(t, "eirgrid", sources[1].Name())
}
