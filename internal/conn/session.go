package conn

import (
	"github.com/NPLinker/nplinker/internal/linker"
	"github.com/NPLinker/nplinker/internal/schema"
	"github.com/NPLinker/nplinker/internal/store"
	"github.com/google/uuid"
)

// Session is one dashboard session: its own store, linker and data sources.
// Sessions are independent; all operations on one session run on its
// connection's goroutine, so the linker's single-threaded contract holds.
type Session struct {
	Id     string
	Linker *linker.Linker

	sources map[string]linker.DataSource
	// payloads replaced during the current event turn, keyed by table
	changed map[string]linker.ColumnData
}

// NewSession builds a fresh session over the given descriptor set. The
// descriptors are shared between sessions and never mutated: reloads swap
// the session's own copies.
func NewSession(tables []*schema.Table) (*Session, error) {
	s, err := schema.NewSchema(tables)
	if err != nil {
		return nil, err
	}
	st, err := store.NewStore(s)
	if err != nil {
		return nil, err
	}

	session := &Session{
		Id:      uuid.New().String(),
		Linker:  linker.New(st),
		changed: map[string]linker.ColumnData{},
	}

	session.bindSources()
	return session, nil
}

func (s *Session) bindSources() {
	s.sources = s.Linker.Sources()
	for name, source := range s.sources {
		name := name
		source.(*linker.TableSource).OnChange(func(data linker.ColumnData) {
			s.changed[name] = data
		})
	}
}

// Reload swaps in new table contents after an external data refresh and
// rebinds the data sources to match.
func (s *Session) Reload(rows map[string][]schema.Row) error {
	if err := s.Linker.Refresh(rows); err != nil {
		return err
	}
	s.bindSources()
	return nil
}

func (s *Session) Source(table string) (linker.DataSource, bool) {
	source, ok := s.sources[table]
	return source, ok
}

// RunTurn completes one selection-event turn: query under the current
// selection state, publish to the session's data sources, and report which
// tables' payloads were replaced.
func (s *Session) RunTurn() (map[string]linker.ColumnData, error) {
	s.changed = map[string]linker.ColumnData{}
	if err := s.Linker.Query(); err != nil {
		return nil, err
	}
	if err := s.Linker.Publish(s.sources); err != nil {
		return nil, err
	}
	return s.changed, nil
}
