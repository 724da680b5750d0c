package models

import (
	"strings"
	"time"
)

// InternalURLMarker flags gateway URLs that are only reachable from
// inside the hosting network. Such gateways contribute no liveness
// signals and are skipped, not treated as errors.
const InternalURLMarker = ".internal"

type Gateway struct {
	ID               string    `json:"id"                 db:"id"`
	Name             string    `json:"name"               db:"name"`
	URL              *string   `json:"url"                db:"url"`
	Token            *string   `json:"-"                  db:"token"`
	AllowInsecureTLS bool      `json:"allow_insecure_tls" db:"allow_insecure_tls"`
	CreatedAt        time.Time `json:"created_at"         db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"         db:"updated_at"`
}

// HasUsableURL reports whether the gateway can be polled at all.
func (g *Gateway) HasUsableURL() bool {
	return g.URL != nil && *g.URL != "" && !strings.Contains(*g.URL, InternalURLMarker)
}
