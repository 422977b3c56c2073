package httputil

import (
	"net/http"

	"leadharvest/config"
)

type Clients struct {
	API      *http.Client // scraper job API
	Scraping *http.Client // lead websites
}

// NewClients builds the two HTTP clients the daemon uses. The API client gets
// a generous timeout because CSV downloads can be large; the scraping client
// follows redirects so the final URL lands on the extraction record.
func NewClients(cfg *config.Config) *Clients {
	return &Clients{
		API:      &http.Client{Timeout: cfg.API.Timeout},
		Scraping: &http.Client{Timeout: cfg.Website.Timeout},
	}
}
