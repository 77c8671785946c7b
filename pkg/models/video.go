package models

import "fmt"

// VideoInput is the structured description of the promotional video to
// generate. It is immutable once a job starts.
type VideoInput struct {
	RestaurantName    string     `json:"resto_name"`
	RestaurantAddress string     `json:"resto_address"`
	OpeningScene      Scene      `json:"opening_scene"`
	ClosingScene      Scene      `json:"closing_scene"`
	Music             Music      `json:"music"`
	Menu              []MenuItem `json:"menu"`
}

// Scene describes one generated clip: a synthesis prompt plus the source image.
type Scene struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
}

// Music is the background soundtrack configuration.
type Music struct {
	Enabled bool   `json:"enabled"`
	Genres  string `json:"genres"`
	BPM     int    `json:"bpm,omitempty"`
	Lyrics  string `json:"lyrics,omitempty"`
}

// MenuItem is one dish featured in the video.
type MenuItem struct {
	Name        string `json:"name"`
	Price       int    `json:"price"`
	Description string `json:"description"`
	PhotoURL    string `json:"photo_url"`
}

// Validate checks that the input carries everything the pipeline needs.
// Malformed input is fatal and non-retryable, so this runs before any
// remote call is made.
func (v *VideoInput) Validate() error {
	if v.RestaurantName == "" {
		return fmt.Errorf("resto_name is required")
	}
	if err := v.OpeningScene.validate("opening_scene"); err != nil {
		return err
	}
	if err := v.ClosingScene.validate("closing_scene"); err != nil {
		return err
	}
	for i, item := range v.Menu {
		if item.Name == "" {
			return fmt.Errorf("menu[%d].name is required", i)
		}
		if item.PhotoURL == "" {
			return fmt.Errorf("menu[%d].photo_url is required", i)
		}
	}
	return nil
}

func (s *Scene) validate(field string) error {
	if s.Prompt == "" {
		return fmt.Errorf("%s.prompt is required", field)
	}
	if s.ImageURL == "" {
		return fmt.Errorf("%s.image_url is required", field)
	}
	return nil
}
