package model

import "time"

type Profile struct {
	ID                string    `json:"id" db:"id"`
	Email             string    `json:"email" db:"email"`
	Banned            bool      `json:"banned" db:"banned"`
	AuthorizedPlugins []int64   `json:"authorized_plugins" db:"-"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// HasPlugin reports whether the profile is entitled to the plugin.
func (p *Profile) HasPlugin(pluginID int64) bool {
	for _, id := range p.AuthorizedPlugins {
		if id == pluginID {
			return true
		}
	}
	return false
}

type BlacklistToken struct {
	TokenHash string     `json:"token_hash" db:"token_hash"`
	IssuedAt  time.Time  `json:"issued_at" db:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}
