package questionpool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/codewandler/qpool-go/core/es"
)

// ListItem is the listing view of one pool.
type ListItem struct {
	ID                 ID        `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Creator            string    `json:"creator"`
	QuestionCount      int       `json:"question_count"`
	ConfigurationCount int       `json:"configuration_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	// Name matches a case-insensitive substring of the pool name.
	Name string
	// Creator matches the creator exactly.
	Creator string
}

func (f *Filter) Match(item ListItem) bool {
	if f == nil {
		return true
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Creator != "" && item.Creator != f.Creator {
		return false
	}
	return true
}

type listEntry struct {
	item    ListItem
	configs map[string]struct{}
	deleted bool
}

// PoolList is a projection of all pools in creation order. Deleted pools are
// kept out of listings.
type PoolList struct {
	mu      sync.RWMutex
	order   []ID
	entries map[ID]*listEntry
}

func NewPoolList() *PoolList {
	return &PoolList{entries: map[ID]*listEntry{}}
}

func (l *PoolList) Name() string { return "question_pool_list" }

func (l *PoolList) Handle(_ context.Context, env es.Envelope, event any) error {
	if env.AggregateType != AggregateType {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := event.(*PoolCreated); ok {
		if _, exists := l.entries[e.ID]; exists {
			return fmt.Errorf("pool %s created twice", e.ID)
		}
		l.entries[e.ID] = &listEntry{
			item: ListItem{
				ID:          e.ID,
				Name:        e.Data.GetName(),
				Description: e.Data.GetDescription(),
				Creator:     e.Creator,
				CreatedAt:   env.OccurredAt,
				UpdatedAt:   env.OccurredAt,
			},
			configs: map[string]struct{}{},
		}
		l.order = append(l.order, e.ID)
		return nil
	}

	id, err := ParseID(env.AggregateID)
	if err != nil {
		return err
	}
	entry, ok := l.entries[id]
	if !ok {
		return fmt.Errorf("pool %s not created", id)
	}

	switch e := event.(type) {
	case *PoolDataSet:
		entry.item.Name = e.Data.GetName()
		entry.item.Description = e.Data.GetDescription()
	case *QuestionAdded:
		entry.item.QuestionCount++
	case *QuestionRemoved:
		entry.item.QuestionCount--
	case *ConfigurationSet:
		entry.configs[e.ConfigFor] = struct{}{}
		entry.item.ConfigurationCount = len(entry.configs)
	case *ConfigurationRemoved:
		delete(entry.configs, e.ConfigFor)
		entry.item.ConfigurationCount = len(entry.configs)
	case *PoolDeleted:
		entry.deleted = true
	}
	entry.item.UpdatedAt = env.OccurredAt
	return nil
}

// Items returns the live pools matching f in creation order. A nil filter
// matches everything.
func (l *PoolList) Items(f *Filter) []ListItem {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ListItem, 0, len(l.order))
	for _, id := range l.order {
		entry := l.entries[id]
		if entry.deleted || !f.Match(entry.item) {
			continue
		}
		out = append(out, entry.item)
	}
	return out
}

var _ es.Projection = (*PoolList)(nil)
