package service

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/dirwatch/corewatch/backend"
	"github.com/dirwatch/corewatch/config"
	"github.com/dirwatch/corewatch/event"
)

// Service owns one backend.Engine and the Subscriptions built from a
// loaded config. It is the thin ambient layer a CLI or daemon drives;
// it is not part of the specified core.
type Service struct {
	engine *backend.Engine
	subs   []*Subscription
	debs   []*Debounced
}

// New starts a fresh backend engine.
func New() (*Service, error) {
	eng, err := backend.New()
	if err != nil {
		return nil, fmt.Errorf("failed to start backend: %w", err)
	}
	return &Service{engine: eng}, nil
}

// Close shuts down every debounce loop and the backend engine.
func (s *Service) Close() error {
	for _, d := range s.debs {
		d.Close()
	}
	return s.engine.Close()
}

// snapshotPath returns the on-disk snapshot path for a watched root,
// under cfg.SnapshotDir.
func snapshotPath(snapshotDir, root string) string {
	name := filepath.Base(root) + ".snapshot"
	return filepath.Join(snapshotDir, name)
}

// Start loads every root from cfg, recovers events missed while this
// process was offline (via the persisted snapshot, if any), subscribes
// for live updates, and wires a debounced delivery path to onEvents.
func (s *Service) Start(cfg *config.Config, onEvents func(root string, batch []event.Event)) error {
	for _, r := range cfg.Roots {
		sub := NewSubscription(r.Path, r.Ignore, r.RecursiveRemove)

		snap := snapshotPath(cfg.SnapshotDir, r.Path)
		if err := s.engine.GetEventsSince(sub, snap); err != nil {
			log.Warn().Caller().Err(err).Str("root", r.Path).Msg("failed to recover offline events")
		}

		if err := s.engine.Subscribe(sub); err != nil {
			return fmt.Errorf("failed to subscribe %q: %w", r.Path, err)
		}

		root := r.Path
		deb := NewDebounced(sub, debouncedTick, debouncedQuiet, func(batch []event.Event) {
			onEvents(root, batch)
		})

		s.subs = append(s.subs, sub)
		s.debs = append(s.debs, deb)

		log.Info().Str("root", r.Path).Msg("subscribed")
	}

	return nil
}

// WriteSnapshots persists the current tree for every watched root, for
// graceful-shutdown use so the next run's GetEventsSince has something
// to diff against.
func (s *Service) WriteSnapshots(cfg *config.Config) error {
	for i, r := range cfg.Roots {
		if i >= len(s.subs) {
			break
		}
		snap := snapshotPath(cfg.SnapshotDir, r.Path)
		if err := s.engine.WriteSnapshot(s.subs[i], snap); err != nil {
			return fmt.Errorf("failed to write snapshot for %q: %w", r.Path, err)
		}
	}
	return nil
}

// Scan posts one create event per entry currently in root's tree,
// without needing a live subscription first.
func (s *Service) Scan(root string, ignore []string, recursiveRemove bool) ([]event.Event, error) {
	sub := NewSubscription(root, ignore, recursiveRemove)
	if err := s.engine.Scan(sub); err != nil {
		return nil, err
	}
	return sub.Events().Events(), nil
}
