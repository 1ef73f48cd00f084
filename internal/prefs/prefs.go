// Package prefs stores the per-browser light/dark theme.
package prefs

import (
	"context"
	"sync"
)

// Theme is a color scheme. The empty theme means "follow the browser".
type Theme string

const (
	ThemeUnset Theme = ""
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Toggled returns the opposite theme. An unset theme becomes dark.
func (t Theme) Toggled() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Store persists themes per client id and notifies other tabs of changes.
type Store interface {
	Get(ctx context.Context, client string) (Theme, error)
	Toggle(ctx context.Context, client string) (Theme, error)
	// Subscribe delivers theme changes for client until ctx is done, then
	// closes the channel.
	Subscribe(ctx context.Context, client string) (<-chan Theme, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.Mutex
	themes map[string]Theme
	subs   map[string]map[chan Theme]struct{}
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		themes: make(map[string]Theme),
		subs:   make(map[string]map[chan Theme]struct{}),
	}
}

func (m *Memory) Get(_ context.Context, client string) (Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.themes[client], nil
}

func (m *Memory) Toggle(_ context.Context, client string) (Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.themes[client].Toggled()
	m.themes[client] = t
	for ch := range m.subs[client] {
		select {
		case ch <- t:
		default:
		}
	}
	return t, nil
}

func (m *Memory) Subscribe(ctx context.Context, client string) (<-chan Theme, error) {
	ch := make(chan Theme, 1)

	m.mu.Lock()
	if m.subs[client] == nil {
		m.subs[client] = make(map[chan Theme]struct{})
	}
	m.subs[client][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[client], ch)
		if len(m.subs[client]) == 0 {
			delete(m.subs, client)
		}
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}
