// Package session coordinates the lifecycle of bag playback and record
// runs: which topics are selected, where the playback position sits, and
// which external processes are currently serving the session.
package session

import (
	"github.com/pkg/errors"

	"go.viam.com/bagctl/bag"
)

// An Entry is one topic row in a selection, in display order.
type Entry struct {
	Name     string
	Included bool
}

// Selection is an ordered set of topic names, each carrying an include
// flag. Insertion order is display order; names are unique; topics are
// included by default when added.
type Selection struct {
	order    []string
	included map[string]bool
}

// NewSelection builds a selection over the given topics, all included.
func NewSelection(topics []bag.TopicInfo) *Selection {
	s := &Selection{included: map[string]bool{}}
	for _, topic := range topics {
		s.add(topic.Name)
	}
	return s
}

func (s *Selection) add(name string) {
	if _, ok := s.included[name]; ok {
		return
	}
	s.order = append(s.order, name)
	s.included[name] = true
}

// Len returns the number of topics in the selection, included or not.
func (s *Selection) Len() int {
	return len(s.order)
}

// Set flips the include flag of a single topic, reporting whether the
// topic is part of the selection at all.
func (s *Selection) Set(name string, included bool) bool {
	if _, ok := s.included[name]; !ok {
		return false
	}
	s.included[name] = included
	return true
}

// SetAll marks every topic included or excluded at once.
func (s *Selection) SetAll(included bool) {
	for _, name := range s.order {
		s.included[name] = included
	}
}

// Replace rebuilds the selection wholesale from a new topic list, all
// included. Prior include flags are discarded.
func (s *Selection) Replace(topics []bag.TopicInfo) {
	s.order = s.order[:0]
	s.included = map[string]bool{}
	for _, topic := range topics {
		s.add(topic.Name)
	}
}

// Entries returns every topic with its include flag, in display order.
func (s *Selection) Entries() []Entry {
	entries := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		entries = append(entries, Entry{Name: name, Included: s.included[name]})
	}
	return entries
}

// Selected returns the names of the included topics, in display order.
func (s *Selection) Selected() []string {
	var selected []string
	for _, name := range s.order {
		if s.included[name] {
			selected = append(selected, name)
		}
	}
	return selected
}

// Config holds the playback options applied to the next play run. Changing
// it never affects an already running process.
type Config struct {
	Rate         float64
	Loop         bool
	PublishClock bool
}

// DefaultConfig mirrors the defaults a fresh session starts with.
func DefaultConfig() Config {
	return Config{Rate: 1.0, PublishClock: true}
}

// Validate checks the config is usable for a play run.
func (c Config) Validate() error {
	if c.Rate <= 0 {
		return errors.Errorf("rate must be positive; got %v", c.Rate)
	}
	return nil
}
