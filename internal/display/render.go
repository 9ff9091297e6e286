package display

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/example/farmadisplay/internal/lookup"
	"github.com/example/farmadisplay/internal/models"
)

// Viewport selects between the full-screen kiosk view and the authoring
// preview. Layout is identical; the client scales it differently.
type Viewport string

const (
	ViewportKiosk   Viewport = "kiosk"
	ViewportPreview Viewport = "preview"
)

// Content kinds in the main content area.
const (
	ContentImage       = "image"
	ContentLookup      = "lookup"
	ContentLookupError = "lookup_error"
	ContentEmpty       = "empty"
)

const defaultSubtitle = "Farmacie di turno"

const maxLookupResults = 5

// PharmacyLookup is the external on-duty pharmacy collaborator used by the
// scraped content mode.
type PharmacyLookup interface {
	Search(ctx context.Context, params lookup.SearchParams) ([]lookup.Pharmacy, error)
}

// VisualTree is the layout produced for one render pass: a fixed vertical
// stack of header, subtitle band, content area and optional footer band.
type VisualTree struct {
	Viewport   Viewport `json:"viewport"`
	Background string   `json:"background"`
	Foreground string   `json:"foreground"`
	Border     string   `json:"border"`
	Header     Header   `json:"header"`
	Subtitle   Band     `json:"subtitle"`
	Content    Content  `json:"content"`
	Footer     *Band    `json:"footer,omitempty"`
	Offline    bool     `json:"offline"`
}

// Header is the top band with branding and the live clock.
type Header struct {
	LogoRef      string `json:"logo_ref,omitempty"`
	PharmacyName string `json:"pharmacy_name"`
	TodayHours   string `json:"today_hours,omitempty"`
	Clock        string `json:"clock"`
	Date         string `json:"date"`
}

// Band is a colored strip of text.
type Band struct {
	Text       string `json:"text"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
}

// Content is the mode-dependent main area.
type Content struct {
	Kind     string        `json:"kind"`
	ImageRef string        `json:"image_ref,omitempty"`
	IsPDF    bool          `json:"is_pdf,omitempty"`
	Results  []LookupEntry `json:"results,omitempty"`
	Message  string        `json:"message,omitempty"`
	Detail   string        `json:"detail,omitempty"`
}

// LookupEntry is one on-duty pharmacy card.
type LookupEntry struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Distance string `json:"distance,omitempty"`
	Status   string `json:"status"`
	Hours    string `json:"hours,omitempty"`
	Phone    string `json:"phone,omitempty"`
	// MapQR is a PNG-encoded QR code pointing at a map query for the
	// pharmacy's address.
	MapQR []byte `json:"map_qr,omitempty"`
}

var italianDays = []string{"Domenica", "Lunedì", "Martedì", "Mercoledì", "Giovedì", "Venerdì", "Sabato"}

var italianMonths = []string{"Gen", "Feb", "Mar", "Apr", "Mag", "Giu", "Lug", "Ago", "Set", "Ott", "Nov", "Dic"}

// Renderer turns an effective configuration into a visual tree. It performs
// no I/O except the lookup collaborator call in scraped mode.
type Renderer struct {
	Lookup PharmacyLookup
}

// Render lays out the display for the given configuration and wall-clock
// time. It is intended to be re-invoked on every clock tick and whenever the
// configuration identity changes.
func (r *Renderer) Render(ctx context.Context, cfg EffectiveConfig, now time.Time, viewport Viewport) VisualTree {
	tree := VisualTree{
		Viewport:   viewport,
		Background: "#ffffff",
		Foreground: "#000000",
		Border:     "#e5e5e5",
	}
	if cfg.Theme == models.ThemeDark {
		tree.Background = "#1a1a1a"
		tree.Foreground = "#ffffff"
		tree.Border = "#333333"
	}

	tree.Header = Header{
		LogoRef:      cfg.LogoRef,
		PharmacyName: cfg.PharmacyName,
		TodayHours:   TodayHours(cfg.WeeklyHours, now),
		Clock:        now.Format("15:04"),
		Date:         formatItalianDate(now),
	}

	subtitle := cfg.SubtitleText
	if subtitle == "" {
		subtitle = defaultSubtitle
	}
	tree.Subtitle = Band{Text: subtitle, Background: cfg.PrimaryColor, Foreground: "#ffffff"}

	tree.Content = r.renderContent(ctx, cfg)

	if cfg.FooterText != "" {
		tree.Footer = &Band{Text: cfg.FooterText, Background: cfg.SecondaryColor, Foreground: "#ffffff"}
	}

	return tree
}

func (r *Renderer) renderContent(ctx context.Context, cfg EffectiveConfig) Content {
	switch cfg.DisplayMode {
	case models.DisplayModeImage:
		if cfg.ImageRef == "" {
			return emptyContent()
		}
		return Content{
			Kind:     ContentImage,
			ImageRef: cfg.ImageRef,
			IsPDF:    strings.HasSuffix(strings.ToLower(cfg.ImageRef), ".pdf"),
		}
	case models.DisplayModeScraped:
		return r.renderLookup(ctx, cfg)
	default:
		return emptyContent()
	}
}

// renderLookup queries the lookup collaborator and builds result cards. A
// lookup failure degrades to an inline error panel so the rest of the display
// stays intact.
func (r *Renderer) renderLookup(ctx context.Context, cfg EffectiveConfig) Content {
	if r.Lookup == nil || (cfg.ScrapingCap == "" && cfg.ScrapingCity == "") {
		return emptyContent()
	}

	results, err := r.Lookup.Search(ctx, lookup.SearchParams{
		Cap:  cfg.ScrapingCap,
		City: cfg.ScrapingCity,
	})
	if err != nil {
		return Content{
			Kind:    ContentLookupError,
			Message: "Ricerca farmacie non disponibile",
			Detail:  "Riprova al prossimo aggiornamento",
		}
	}
	if len(results) == 0 {
		return Content{
			Kind:    ContentLookup,
			Message: "Nessuna farmacia trovata",
		}
	}

	if len(results) > maxLookupResults {
		results = results[:maxLookupResults]
	}

	entries := make([]LookupEntry, 0, len(results))
	for _, p := range results {
		entry := LookupEntry{
			Name:    p.Name,
			Address: p.Address,
			City:    p.City,
			Status:  p.Status,
			Hours:   p.ShiftHours,
			Phone:   p.Phone,
		}
		if entry.Hours == "" {
			entry.Hours = p.OpeningHours
		}
		if p.DistanceKm != nil {
			entry.Distance = fmt.Sprintf("%.1f km", *p.DistanceKm)
		}
		if png, err := mapQR(p.Name, p.Address, p.City); err == nil {
			entry.MapQR = png
		}
		entries = append(entries, entry)
	}

	return Content{Kind: ContentLookup, Results: entries}
}

func emptyContent() Content {
	return Content{
		Kind:    ContentEmpty,
		Message: "Nessun contenuto configurato",
		Detail:  "Configurare il display dalla dashboard",
	}
}

// TodayHours selects today's slot list and joins it for the header band.
// Returns "Chiuso" for a present-but-empty day and "" when no weekly hours
// are configured at all.
func TodayHours(hours models.WeeklyHours, now time.Time) string {
	if hours == nil {
		return ""
	}
	slots := hours[models.DayKey(now.Weekday())]
	if len(slots) == 0 {
		return "Chiuso"
	}
	parts := make([]string, 0, len(slots))
	for _, slot := range slots {
		parts = append(parts, slot.Open+"-"+slot.Close)
	}
	return strings.Join(parts, ", ")
}

func formatItalianDate(now time.Time) string {
	return fmt.Sprintf("%s, %d %s %d",
		italianDays[now.Weekday()], now.Day(), italianMonths[now.Month()-1], now.Year())
}

func mapQR(name, address, city string) ([]byte, error) {
	query := url.QueryEscape(strings.TrimSpace(name + " " + address + " " + city))
	return qrcode.Encode("https://www.google.com/maps/search/?api=1&query="+query, qrcode.Medium, 128)
}
