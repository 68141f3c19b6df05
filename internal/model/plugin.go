package model

import "time"

type Plugin struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	BasicDescription string    `json:"basic_description" db:"basic_description"`
	Description      string    `json:"description" db:"description"`
	Version          string    `json:"version" db:"version"`
	Active           bool      `json:"active" db:"active"`
	Premium          bool      `json:"premium" db:"premium"`
	Price            float64   `json:"price" db:"price"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// SetPrice updates the price and keeps Premium in step with it.
func (p *Plugin) SetPrice(price float64) {
	p.Price = price
	p.Premium = price > 0
}

// PriceCents returns the price in the smallest currency unit.
func (p *Plugin) PriceCents() int64 {
	return int64(p.Price*100 + 0.5)
}

type PluginVersion struct {
	ID         int64     `json:"id" db:"id"`
	PluginID   int64     `json:"plugin_id" db:"plugin_id"`
	PluginName string    `json:"plugin_name" db:"plugin_name"`
	Version    string    `json:"version" db:"version"`
	Changelog  string    `json:"changelog" db:"changelog"`
	Downloads  int64     `json:"downloads" db:"downloads"`
	FileName   string    `json:"file_name" db:"file_name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// DownloadLink is a single-use grant binding a plugin version to the identity
// that requested it. AccountID is nil for anonymous requests.
type DownloadLink struct {
	ID         string     `json:"id" db:"id"`
	PluginID   int64      `json:"plugin_id" db:"plugin_id"`
	Version    string     `json:"version" db:"version"`
	AccountID  *string    `json:"account_id,omitempty" db:"account_id"`
	IPAddress  string     `json:"-" db:"ip_address"`
	Available  bool       `json:"available" db:"available"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty" db:"consumed_at"`
}
