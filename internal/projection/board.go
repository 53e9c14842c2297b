package projection

import (
	"sync"

	"junks-backend/internal/livequery"
)

// Section is one independently loaded part of a Board.
type Section interface {
	Value() interface{}
	Changes() <-chan struct{}
	Close()
}

// Board groups named sections. A failing section reports its own error and
// never clears the data of the others.
type Board struct {
	names    []string
	sections map[string]Section
	changes  chan struct{}
	stop     chan struct{}
	once     sync.Once
}

func NewBoard() *Board {
	return &Board{
		sections: make(map[string]Section),
		changes:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Add registers a section under name and forwards its changes.
func (b *Board) Add(name string, s Section) *Board {
	b.names = append(b.names, name)
	b.sections[name] = s
	go func() {
		for {
			select {
			case <-b.stop:
				return
			case <-s.Changes():
				select {
				case b.changes <- struct{}{}:
				default:
				}
			}
		}
	}()
	return b
}

// Value returns the current view of every section keyed by name.
func (b *Board) Value() interface{} {
	return b.View()
}

func (b *Board) View() map[string]interface{} {
	out := make(map[string]interface{}, len(b.names))
	for _, name := range b.names {
		out[name] = b.sections[name].Value()
	}
	return out
}

func (b *Board) Changes() <-chan struct{} { return b.changes }

func (b *Board) Close() {
	b.once.Do(func() {
		close(b.stop)
		for _, name := range b.names {
			b.sections[name].Close()
		}
	})
}

type CountView struct {
	Count     int    `json:"count"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

// Counter is a section reporting only the number of documents a query
// matches.
type Counter struct {
	p *Projector[string]
}

func NewCounter(sub *livequery.Subscription) *Counter {
	return &Counter{p: New(sub, documentID, nil)}
}

func (c *Counter) View() CountView {
	v := c.p.View()
	return CountView{Count: len(v.Data), IsLoading: v.IsLoading, Error: v.Error}
}

func (c *Counter) Value() interface{}      { return c.View() }
func (c *Counter) Changes() <-chan struct{} { return c.p.Changes() }
func (c *Counter) Close()                   { c.p.Close() }
