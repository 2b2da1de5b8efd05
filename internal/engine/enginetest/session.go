// Package enginetest provides a scripted engine.Session for tests that
// exercise pipeline composition and orchestration without a live engine.
package enginetest

import (
	"context"
	"fmt"
	"strings"

	"addrmatch/internal/engine"
)

// Responder produces a result for a matched query.
type Responder func(query string) (*engine.Result, error)

// Session records every statement it receives and answers queries through
// registered responders, matched by substring in registration order.
type Session struct {
	Queries      []string
	Execs        []string
	Materialised map[string]string // name -> query text
	Registered   map[string][][]any

	responders []responderEntry
}

type responderEntry struct {
	substr string
	fn     Responder
}

// NewSession returns an empty scripted session.
func NewSession() *Session {
	return &Session{
		Materialised: make(map[string]string),
		Registered:   make(map[string][][]any),
	}
}

// Respond registers a responder for queries containing substr.
func (s *Session) Respond(substr string, fn Responder) {
	s.responders = append(s.responders, responderEntry{substr: substr, fn: fn})
}

// RespondRows registers a fixed result for queries containing substr.
func (s *Session) RespondRows(substr string, cols []string, rows [][]any) {
	s.Respond(substr, func(string) (*engine.Result, error) {
		return &engine.Result{Columns: cols, Rows: rows}, nil
	})
}

// RespondCount registers a COUNT(*)-shaped result for queries containing
// substr.
func (s *Session) RespondCount(substr string, n int64) {
	s.RespondRows(substr, []string{"count"}, [][]any{{n}})
}

func (s *Session) Query(_ context.Context, query string) (*engine.Result, error) {
	s.Queries = append(s.Queries, query)
	for _, r := range s.responders {
		if strings.Contains(query, r.substr) {
			return r.fn(query)
		}
	}
	return nil, fmt.Errorf("enginetest: no responder for query: %s", query)
}

func (s *Session) Exec(_ context.Context, query string) error {
	s.Execs = append(s.Execs, query)
	return nil
}

func (s *Session) CreateTempTableAs(_ context.Context, name, query string) error {
	s.Materialised[name] = query
	return nil
}

func (s *Session) RegisterRows(_ context.Context, name string, _ []engine.Column, rows [][]any) error {
	s.Registered[name] = rows
	return nil
}

var _ engine.Session = (*Session)(nil)
