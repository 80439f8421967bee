package models

import (
	"fmt"
	"time"
)

// Asset is an uploaded image as listed by the remote asset store.
type Asset struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Bytes     int64     `json:"bytes"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
}

// Signature is the cheap duplicate-detection key of an asset. Two distinct
// uploads with the same size and format share a signature.
func (a Asset) Signature() string {
	return fmt.Sprintf("%d_%s", a.Bytes, a.Format)
}

type LedgerEntry struct {
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
	Signature string    `json:"signature"`
	Duplicate bool      `json:"duplicate"`
}
