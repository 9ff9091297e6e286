package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div class="farmacia-box" itemtype="https://schema.org/Pharmacy">
  <span class="pharmacyname" itemprop="name">FARMACIA SANT'ANDREA</span>
  <div itemprop="address">
    <span class="address">Distanza stimata: <b>1,3</b> km<br>
      <span itemprop="streetAddress">Via Appia Nuova 213</span>
      <span itemprop="addressLocality">00183 Roma</span>
      <span itemprop="addressRegion">RM</span>
    </span>
  </div>
  <a class="btorario cturno" href="#">di turno</a>
  <a class="orario" href="#">Turno*: dalle 19:00 del 02/03 alle 08:30 del 03/03</a>
  <a class="orario" href="#">Apertura: 08:30 - 19:30</a>
  <a href="tel:+390677201357">chiama</a>
  <a href="/farmacia.asp?idf=12345">dettagli</a>
</div>
<div class="farmacia-box" itemtype="https://schema.org/Pharmacy">
  <span class="pharmacyname" itemprop="name">FARMACIA DELL'UNIT&Agrave;</span>
  <div itemprop="address">
    <span class="address">
      <span itemprop="streetAddress">Piazza dell'Unit&agrave; 4</span>
      <span itemprop="addressLocality">00192 Roma</span>
      <span itemprop="addressRegion">RM</span>
    </span>
  </div>
  <a class="btorario caperto" href="#">aperta</a>
  <a class="orario" href="#">Apertura: 08:30 - 20:00</a>
</div>
<div class="farmacia-box" itemtype="https://schema.org/Pharmacy">
  <!-- box without a name is skipped -->
  <div itemprop="address"></div>
</div>
</body></html>`

func newFixtureServer(t *testing.T, gotForm *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ricercaditurno.asp" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if gotForm != nil {
			*gotForm = r.PostForm
		}

		// The live site serves Latin-1.
		encoded, err := charmap.ISO8859_1.NewEncoder().String(resultsPage)
		if err != nil {
			t.Fatalf("encode fixture: %v", err)
		}
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte(encoded))
	}))
}

func TestSearchParsesResults(t *testing.T) {
	srv := newFixtureServer(t, nil)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	results, err := client.Search(context.Background(), SearchParams{Cap: "00183"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (nameless box skipped)", len(results))
	}

	first := results[0]
	if first.Name != "FARMACIA SANT'ANDREA" {
		t.Errorf("Name = %q", first.Name)
	}
	if first.Address != "Via Appia Nuova 213" {
		t.Errorf("Address = %q", first.Address)
	}
	if first.PostalCode != "00183" || first.City != "Roma" || first.Province != "RM" {
		t.Errorf("locality = %q %q %q", first.PostalCode, first.City, first.Province)
	}
	if first.Status != "TURNO" {
		t.Errorf("Status = %q", first.Status)
	}
	if first.ShiftHours != "dalle 19:00 del 02/03 alle 08:30 del 03/03" {
		t.Errorf("ShiftHours = %q", first.ShiftHours)
	}
	if first.OpeningHours != "08:30 - 19:30" {
		t.Errorf("OpeningHours = %q", first.OpeningHours)
	}
	if first.Phone != "+390677201357" {
		t.Errorf("Phone = %q", first.Phone)
	}
	if first.DistanceKm == nil || *first.DistanceKm != 1.3 {
		t.Errorf("DistanceKm = %v", first.DistanceKm)
	}
	if first.DetailsURL != srv.URL+"/farmacia.asp?idf=12345" {
		t.Errorf("DetailsURL = %q", first.DetailsURL)
	}

	second := results[1]
	if second.Status != "APERTO" {
		t.Errorf("second Status = %q", second.Status)
	}
	// Latin-1 accented characters must survive decoding.
	if second.Name != "FARMACIA DELL'UNITÀ" {
		t.Errorf("second Name = %q", second.Name)
	}
	if second.DistanceKm != nil {
		t.Errorf("second DistanceKm = %v, want absent", second.DistanceKm)
	}
}

func TestSearchFormFields(t *testing.T) {
	var form url.Values
	srv := newFixtureServer(t, &form)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	when := time.Date(time.Now().Year()+1, time.June, 15, 10, 50, 0, 0, time.Local)
	_, err := client.Search(context.Background(), SearchParams{City: "Roma", When: when})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if form.Get("indirizzo") != "Roma" {
		t.Errorf("indirizzo = %q", form.Get("indirizzo"))
	}
	// Dates beyond the site's 15 day window clamp to its last day.
	if form.Get("giorno") != "15" {
		t.Errorf("giorno = %q", form.Get("giorno"))
	}
	// 10:50 rounds up to 11:00.
	if form.Get("orario") != "1100" {
		t.Errorf("orario = %q", form.Get("orario"))
	}
	if form.Get("md") == "" {
		t.Error("md submit field missing")
	}
}

func TestSearchCapTakesPrecedenceOverCity(t *testing.T) {
	var form url.Values
	srv := newFixtureServer(t, &form)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	if _, err := client.Search(context.Background(), SearchParams{Cap: "00183", City: "Roma"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if form.Get("indirizzo") != "00183" {
		t.Errorf("indirizzo = %q, want postal code preferred", form.Get("indirizzo"))
	}
}

func TestSearchRequiresSearchTerm(t *testing.T) {
	client := NewClient("http://localhost", time.Second)
	if _, err := client.Search(context.Background(), SearchParams{}); err != ErrNoSearchTerm {
		t.Errorf("err = %v, want ErrNoSearchTerm", err)
	}
}

func TestRoundedClock(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         int
	}{
		{9, 0, 900},
		{9, 14, 900},
		{9, 15, 930},
		{9, 44, 930},
		{9, 45, 1000},
		{23, 50, 2330},
	}

	for _, tt := range tests {
		when := time.Date(2026, time.March, 2, tt.hour, tt.minute, 0, 0, time.UTC)
		if got := roundedClock(when); got != tt.want {
			t.Errorf("roundedClock(%02d:%02d) = %d, want %d", tt.hour, tt.minute, got, tt.want)
		}
	}
}

func TestDayOffset(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		when time.Time
		want int
	}{
		{"today", now, 1},
		{"in three days", now.AddDate(0, 0, 3), 4},
		{"past clamps to today", now.AddDate(0, 0, -2), 1},
		{"beyond window clamps", now.AddDate(0, 0, 30), 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dayOffset(tt.when); got != tt.want {
				t.Errorf("dayOffset = %d, want %d", got, tt.want)
			}
		})
	}
}
