package models

import (
	"strconv"
	"strings"
)

// Keys of the config table.
const (
	ConfigNumOfPosts        = "num_of_posts"
	ConfigFrequency         = "frequency"
	ConfigDontUseUntil      = "dontuseuntil"
	ConfigAvailablePictures = "available_pictures"
)

type ConfigEntry struct {
	Name  string `db:"config_name" json:"config_name"`
	Value string `db:"config_value" json:"config_value"`
}

type PostingConfig struct {
	NumOfPosts        int    `json:"num_of_posts"`
	Frequency         string `json:"frequency"`
	DontUseUntilDays  int    `json:"dontuseuntil"`
	AvailablePictures int    `json:"available_pictures"`
}

// ParsePostingConfig reads the config table map, applying the defaults used
// when a key is missing or not a number.
func ParsePostingConfig(values map[string]string) PostingConfig {
	pc := PostingConfig{
		NumOfPosts:       2,
		Frequency:        "daily",
		DontUseUntilDays: 0,
	}
	if v, ok := values[ConfigNumOfPosts]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			pc.NumOfPosts = n
		}
	}
	if v := strings.TrimSpace(values[ConfigFrequency]); v != "" {
		pc.Frequency = v
	}
	if v, ok := values[ConfigDontUseUntil]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			pc.DontUseUntilDays = n
		}
	}
	if v, ok := values[ConfigAvailablePictures]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			pc.AvailablePictures = n
		}
	}
	return pc
}
