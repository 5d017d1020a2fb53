package site

import "time"

// Site is a physical location grouping devices, typically one plot or
// greenhouse. Non-admin users only see sites they are assigned to.
type Site struct {
	ID           string    `json:"id"`
	SiteCode     string    `json:"site_code"`
	FriendlyName string    `json:"friendly_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
