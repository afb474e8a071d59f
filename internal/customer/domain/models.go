package domain

import "time"

// Customer mirrors the record store's customer resource.
type Customer struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	AccountCreated time.Time `json:"account_created"`
	IsActive       bool      `json:"is_active"`
}
