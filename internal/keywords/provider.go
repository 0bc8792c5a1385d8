package keywords

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starford/scribe/internal/apperr"
)

const serviceName = "keywords"

// Record is one provider row. Competition is either a [0,1] fraction or a
// [0,100] index; the enricher normalizes it.
type Record struct {
	Keyword     string
	Volume      *int64
	Competition *float64
	CPC         *float64
}

// Provider fetches metrics for one batch of keywords.
type Provider interface {
	Fetch(ctx context.Context, keywords []string, language, location string) ([]Record, error)
}

// HTTPConfig configures HTTPProvider.
type HTTPConfig struct {
	BaseURL  string
	Login    string
	Password string
	Timeout  time.Duration
}

// HTTPProvider talks to a DataForSEO-style search volume endpoint.
type HTTPProvider struct {
	baseURL    string
	login      string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPProvider creates the provider client.
func NewHTTPProvider(cfg HTTPConfig, logger *slog.Logger) (*HTTPProvider, error) {
	if cfg.Login == "" || cfg.Password == "" {
		return nil, errors.New("keywords: provider login and password are required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.dataforseo.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPProvider{
		baseURL:    base,
		login:      cfg.Login,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("service", "keyword_provider")),
	}, nil
}

type volumeTask struct {
	Keywords     []string `json:"keywords"`
	LanguageCode string   `json:"language_code,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
}

type volumeResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
		Result        []struct {
			Keyword          string   `json:"keyword"`
			SearchVolume     *flexNum `json:"search_volume"`
			Competition      *flexNum `json:"competition"`
			CompetitionIndex *flexNum `json:"competition_index"`
			CPC              *flexNum `json:"cpc"`
		} `json:"result"`
	} `json:"tasks"`
}

// Fetch implements Provider with one POST per call.
func (p *HTTPProvider) Fetch(ctx context.Context, keywords []string, language, location string) ([]Record, error) {
	body, err := json.Marshal([]volumeTask{{Keywords: keywords, LanguageCode: language, LocationName: location}})
	if err != nil {
		return nil, fmt.Errorf("keywords: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v3/keywords_data/google_ads/search_volume/live", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("keywords: build request: %w", err)
	}
	req.SetBasicAuth(p.login, p.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Classify(serviceName, 0, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Classify(serviceName, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Classify(serviceName, resp.StatusCode, errors.New(strings.TrimSpace(string(raw))))
	}

	var out volumeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		// An unreadable body means no data, not a transport failure.
		p.logger.Warn("keywords: undecodable provider response", slog.String("error", err.Error()))
		return nil, nil
	}

	var records []Record
	for _, task := range out.Tasks {
		if task.StatusCode != 0 && task.StatusCode != 20000 {
			p.logger.Warn("keywords: provider task failed",
				slog.Int("status_code", task.StatusCode),
				slog.String("message", task.StatusMessage))
			continue
		}
		for _, r := range task.Result {
			rec := Record{Keyword: r.Keyword, CPC: r.CPC.float()}
			if v := r.SearchVolume.float(); v != nil {
				n := int64(*v)
				rec.Volume = &n
			}
			// competition_index is always 0-100; records carry a fraction.
			if idx := r.CompetitionIndex.float(); idx != nil {
				c := *idx / 100
				rec.Competition = &c
			} else {
				rec.Competition = r.Competition.float()
			}
			records = append(records, rec)
		}
	}
	p.logger.Debug("keywords: batch fetched",
		slog.Int("requested", len(keywords)),
		slog.Int("returned", len(records)))
	return records, nil
}

// flexNum decodes a number, a numeric string or a competition level word.
type flexNum struct {
	v  float64
	ok bool
}

var competitionLevels = map[string]float64{"low": 0.2, "medium": 0.5, "high": 0.8}

func (f *flexNum) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	if lvl, ok := competitionLevels[strings.ToLower(s)]; ok {
		f.v, f.ok = lvl, true
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unknown tokens read as missing data.
		return nil
	}
	f.v, f.ok = v, true
	return nil
}

func (f *flexNum) float() *float64 {
	if f == nil || !f.ok {
		return nil
	}
	v := f.v
	return &v
}
