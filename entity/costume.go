package entity

// Costume is a named look a sprite can wear. The engine is headless, so a
// costume is just its name, footprint and an opaque image reference the
// front-end resolves (URL, asset id, or a glyph for the terminal viewer).
type Costume struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Image  string  `json:"image,omitempty"`
}

// Backdrop is a named look for the stage.
type Backdrop struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Image string `json:"image,omitempty"`
}

// defaultCostume is worn by sprites created without looks, so geometry and
// collision math always have a footprint to work with.
func defaultCostume() *Costume {
	return &Costume{Name: "default", Width: 40, Height: 40}
}
