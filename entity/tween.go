package entity

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// glideStep is the update interval for glide motion, roughly frame rate.
const glideStep = 16 * time.Millisecond

// glide animates the sprite from its current position to (toX, toY) over the
// given duration and releases the waited suspension when it arrives. Runs in
// its own goroutine; position writes go through the sprite's mutex, so
// snapshot readers see every intermediate frame.
func (s *Sprite) glide(seconds, toX, toY float64, id string) {
	s.mu.Lock()
	fromX, fromY := s.x, s.y
	s.mu.Unlock()

	if seconds <= 0 {
		s.setPosition(toX, toY)
		s.ReleaseWaited(id)
		return
	}

	go func() {
		tx := gween.New(float32(fromX), float32(toX), float32(seconds), ease.Linear)
		ty := gween.New(float32(fromY), float32(toY), float32(seconds), ease.Linear)

		ticker := time.NewTicker(glideStep)
		defer ticker.Stop()
		last := time.Now()
		for now := range ticker.C {
			dt := float32(now.Sub(last).Seconds())
			last = now
			xv, _ := tx.Update(dt)
			yv, done := ty.Update(dt)
			s.setPosition(float64(xv), float64(yv))
			if done {
				break
			}
		}
		s.ReleaseWaited(id)
	}()
}
