// Package source loads flag definitions from a JSON document and keeps the
// state container in sync with it, optionally watching the file for changes.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagdeck/internal/flags"
	"github.com/TimurManjosov/flagdeck/internal/state"
)

// Document is the on-disk flag configuration shape.
type Document struct {
	Flags       []flags.Definition  `json:"flags"`
	Segments    []flags.UserSegment `json:"segments,omitempty"`
	Experiments []flags.Experiment  `json:"experiments,omitempty"`
}

// Load reads and validates a flag document from path.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flag file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse flag file: %w", err)
	}

	for i := range doc.Flags {
		if result := doc.Flags[i].Validate(); !result.Valid {
			return nil, fmt.Errorf("invalid flag %q: %v", doc.Flags[i].ID, result.Errors)
		}
	}
	return &doc, nil
}

// Apply replaces the container's flags, segments and experiments with the
// document's contents.
func Apply(doc *Document, c *state.Container) {
	c.SetFlags(doc.Flags)
	if doc.Segments != nil {
		c.SetSegments(doc.Segments)
	}
	if doc.Experiments != nil {
		c.SetExperiments(doc.Experiments)
	}
}

// Watch loads the document once, then reloads it into the container on every
// write to the file until ctx is cancelled. Parse failures keep the previous
// state and are logged.
func Watch(ctx context.Context, path string, c *state.Container, log zerolog.Logger) error {
	doc, err := Load(path)
	if err != nil {
		return err
	}
	Apply(doc, c)
	log.Info().Str("path", path).Int("flags", len(doc.Flags)).Msg("flag file loaded")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				doc, err := Load(path)
				if err != nil {
					// Editors often truncate before writing; keep serving
					// the previous snapshot.
					log.Error().Err(err).Str("path", path).Msg("flag file reload failed")
					continue
				}
				Apply(doc, c)
				log.Info().Str("path", path).Int("flags", len(doc.Flags)).Msg("flag file reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("flag file watcher error")
			}
		}
	}()
	return nil
}
