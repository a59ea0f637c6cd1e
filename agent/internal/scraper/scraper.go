package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultScrapeTimeout = 10 * time.Second

// Metric family names exported by fridgekeep-server.
const (
	familyLive          = "fridgekeep_resources_live"
	familyRegistered    = "fridgekeep_resources_registered_total"
	familyRemoved       = "fridgekeep_resources_removed_total"
	familySweepEvicted  = "fridgekeep_sweep_evicted_total"
	familySweepDuration = "fridgekeep_sweep_duration_seconds"
)

// Stats is one scrape of the server's store and sweeper metrics.
// Counter fields hold raw totals since server start.
type Stats struct {
	ScrapedAt time.Time

	Live       float64
	Registered float64

	// Removed holds removal totals keyed by reason: deleted, evicted, replaced.
	Removed map[string]float64

	SweepEvicted float64
	Sweeps       uint64
	SweepSeconds float64
}

// Scraper fetches Stats from one server.
type Scraper struct {
	url    string
	client *http.Client
}

// New returns a Scraper for the server at baseURL. When key is non-empty it is
// sent in header on every request.
func New(baseURL, header, key string) *Scraper {
	var rt http.RoundTripper = http.DefaultTransport
	if key != "" {
		if header == "" {
			header = "x-api-key"
		}
		rt = &authRoundTripper{base: rt, header: header, key: key}
	}
	return &Scraper{
		url:    strings.TrimRight(baseURL, "/") + "/metrics",
		client: &http.Client{Transport: rt, Timeout: defaultScrapeTimeout},
	}
}

// Scrape fetches and summarises the server's metrics.
func (s *Scraper) Scrape(ctx context.Context) (*Stats, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.url)
	if err != nil {
		return nil, fmt.Errorf("scraper: %s: %w", s.url, err)
	}
	return summarise(mfs), nil
}

func summarise(mfs map[string]*dto.MetricFamily) *Stats {
	st := &Stats{
		ScrapedAt:    time.Now().UTC(),
		Live:         sumFamily(mfs[familyLive]),
		Registered:   sumFamily(mfs[familyRegistered]),
		Removed:      sumByLabel(mfs[familyRemoved], "reason"),
		SweepEvicted: sumFamily(mfs[familySweepEvicted]),
	}
	if mf := mfs[familySweepDuration]; mf != nil {
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				st.Sweeps += h.GetSampleCount()
				st.SweepSeconds += h.GetSampleSum()
			}
		}
	}
	return st
}

// authRoundTripper injects the API key header into every outgoing request.
type authRoundTripper struct {
	base   http.RoundTripper
	header string
	key    string
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(t.header, t.key)
	return t.base.RoundTrip(req)
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a parse warning is still returned.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// sumByLabel totals the samples of mf grouped by the value of label.
func sumByLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		key := ""
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
				break
			}
		}
		out[key] += value(m)
	}
	return out
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
