package fintual

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// positionsTableClass is the CSS-module class of the holdings table on
// fintual.cl fund pages. Brittle by nature; scrape failures surface as
// errors rather than empty allocations.
const positionsTableClass = "_positionsTable_czfv5_1"

var nonNumeric = regexp.MustCompile(`[^\d.]`)

// Scraper reads fund allocation tables from public fintual.cl fund pages
type Scraper struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewScraper creates a new allocation scraper.
// baseURL overrides the production site; empty uses https://fintual.cl.
func NewScraper(baseURL string, log zerolog.Logger) *Scraper {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Scraper{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "fintual-scraper").Logger(),
	}
}

// ScrapeAllocation fetches a fund page and extracts its weight table.
// The table alternates <span>SYMBOL: Name</span> and <p>NN,NN%</p> children;
// percentages use the Chilean comma decimal separator.
func (s *Scraper) ScrapeAllocation(fundSlug string) (map[string]decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s", s.baseURL, fundSlug)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for fund %s: %w", fundSlug, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fund page request for %s failed: %w", fundSlug, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fund page for %s returned status %d", fundSlug, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fund page for %s: %w", fundSlug, err)
	}

	allocation := parseAllocationTable(doc)
	if len(allocation) == 0 {
		return nil, fmt.Errorf("no allocation table found for fund %s", fundSlug)
	}

	return allocation, nil
}

func parseAllocationTable(doc *goquery.Document) map[string]decimal.Decimal {
	allocation := make(map[string]decimal.Decimal)

	var currentSymbol string
	doc.Find("." + positionsTableClass).First().Children().Each(func(_ int, sel *goquery.Selection) {
		switch goquery.NodeName(sel) {
		case "span":
			// "ESGV: Vanguard ESG US Stock ETF" or a bare symbol
			text := strings.TrimSpace(sel.Text())
			if idx := strings.Index(text, ":"); idx >= 0 {
				currentSymbol = strings.TrimSpace(text[:idx])
			} else {
				currentSymbol = text
			}
		case "p":
			if currentSymbol == "" {
				return
			}
			text := sel.Text()
			if !strings.Contains(text, "%") {
				return
			}
			if pct, ok := parseChileanPercentage(text); ok {
				allocation[currentSymbol] = pct
			}
			currentSymbol = ""
		}
	})

	return allocation
}

// parseChileanPercentage converts strings like "31,42%" to 0.3142
func parseChileanPercentage(text string) (decimal.Decimal, bool) {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "%", "")
	text = strings.ReplaceAll(text, ",", ".")
	text = nonNumeric.ReplaceAllString(text, "")
	if text == "" {
		return decimal.Decimal{}, false
	}

	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value.Div(decimal.NewFromInt(100)), true
}
