// Package lookup queries farmaciediturno.org for pharmacies currently open
// or on duty near a postal code or city.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/charmap"
)

// ErrNoSearchTerm is returned when neither a postal code nor a city is given.
var ErrNoSearchTerm = errors.New("lookup: postal code or city required")

// Pharmacy is one result row from the lookup site.
type Pharmacy struct {
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	Province     string   `json:"province"`
	PostalCode   string   `json:"postal_code"`
	Status       string   `json:"status"` // "TURNO", "APERTO" or "UNKNOWN"
	OpeningHours string   `json:"opening_hours,omitempty"`
	ShiftHours   string   `json:"shift_hours,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	DistanceKm   *float64 `json:"distance_km,omitempty"`
	DetailsURL   string   `json:"details_url,omitempty"`
}

// SearchParams describe one search. When is optional and defaults to the
// current date and time.
type SearchParams struct {
	Cap  string
	City string
	When time.Time
}

// Client talks to the lookup site. The site serves ISO-8859-1 HTML and takes
// a plain form POST.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Search posts the search form and parses the result boxes.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Pharmacy, error) {
	if params.Cap == "" && params.City == "" {
		return nil, ErrNoSearchTerm
	}

	when := params.When
	if when.IsZero() {
		when = time.Now()
	}

	term := params.Cap
	if term == "" {
		term = params.City
	}

	form := url.Values{
		"indirizzo": {term},
		"giorno":    {strconv.Itoa(dayOffset(when))},
		"orario":    {strconv.Itoa(roundedClock(when))},
		"md":        {"Avvia la ricerca"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/ricercaditurno.asp", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup: unexpected status %d", resp.StatusCode)
	}

	// The site serves Latin-1, not UTF-8; decode before parsing so Italian
	// accented characters survive.
	doc, err := goquery.NewDocumentFromReader(charmap.ISO8859_1.NewDecoder().Reader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("lookup parse: %w", err)
	}

	return parseResults(doc, c.baseURL), nil
}

var (
	localityRe = regexp.MustCompile(`^(\d{5})\s*(.+)$`)
	distanceRe = regexp.MustCompile(`Distanza stimata:\s*<b>([\d,]+)</b>\s*km`)
)

func parseResults(doc *goquery.Document, baseURL string) []Pharmacy {
	var results []Pharmacy

	doc.Find(`div.farmacia-box[itemtype="https://schema.org/Pharmacy"]`).Each(func(_ int, box *goquery.Selection) {
		name := strings.TrimSpace(box.Find(`span.pharmacyname[itemprop="name"]`).First().Text())
		if name == "" {
			return
		}

		addr := box.Find(`div[itemprop="address"]`).First()
		if addr.Length() == 0 {
			return
		}

		p := Pharmacy{
			Name:     name,
			Address:  strings.TrimSpace(addr.Find(`span[itemprop="streetAddress"]`).First().Text()),
			Province: strings.TrimSpace(addr.Find(`span[itemprop="addressRegion"]`).First().Text()),
			Status:   "UNKNOWN",
		}

		locality := strings.TrimSpace(addr.Find(`span[itemprop="addressLocality"]`).First().Text())
		if m := localityRe.FindStringSubmatch(locality); m != nil {
			p.PostalCode = m[1]
			p.City = strings.TrimSpace(m[2])
		} else if parts := strings.SplitN(locality, " ", 2); len(parts) == 2 {
			p.PostalCode = parts[0]
			p.City = strings.TrimSpace(parts[1])
		}

		statusLink := box.Find("a.btorario").First()
		switch {
		case statusLink.HasClass("cturno"):
			p.Status = "TURNO"
		case statusLink.HasClass("caperto"):
			p.Status = "APERTO"
		}

		box.Find("a.orario").Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if rest, ok := strings.CutPrefix(text, "Apertura:"); ok {
				p.OpeningHours = strings.TrimSpace(rest)
			}
			if rest, ok := strings.CutPrefix(text, "Turno*:"); ok {
				p.ShiftHours = strings.TrimSpace(rest)
			}
		})

		box.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			if strings.HasPrefix(href, "tel:") {
				p.Phone = strings.TrimPrefix(href, "tel:")
				return false
			}
			return true
		})

		if html, err := addr.Find("span.address").First().Html(); err == nil {
			if m := distanceRe.FindStringSubmatch(html); m != nil {
				if km, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
					p.DistanceKm = &km
				}
			}
		}

		box.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			if strings.Contains(href, "farmacia.asp?idf=") {
				if !strings.HasPrefix(href, "http") {
					href = baseURL + href
				}
				p.DetailsURL = href
				return false
			}
			return true
		})

		results = append(results, p)
	})

	return results
}

// dayOffset maps the search date onto the site's 1-based day parameter
// (1 = today), clamped to its 15 day window.
func dayOffset(when time.Time) int {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	target := time.Date(when.Year(), when.Month(), when.Day(), 0, 0, 0, 0, when.Location())

	offset := int(target.Sub(today).Hours()/24) + 1
	if offset < 1 {
		offset = 1
	}
	if offset > 15 {
		offset = 15
	}
	return offset
}

// roundedClock formats the search time as the site's HHMM integer, rounded to
// the nearest half hour.
func roundedClock(when time.Time) int {
	hour, minute := when.Hour(), when.Minute()
	switch {
	case minute < 15:
		minute = 0
	case minute < 45:
		minute = 30
	default:
		hour++
		minute = 0
	}
	if hour >= 24 {
		hour, minute = 23, 30
	}
	return hour*100 + minute
}
