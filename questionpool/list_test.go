package questionpool

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/qpool-go/core/es"
)

type listFixture struct {
	t     *testing.T
	store *es.InMemoryStore
	repo  es.TypedRepository[*Pool]
	proj  *es.Projector
	list  *PoolList
	now   time.Time
}

func newListFixture(t *testing.T) *listFixture {
	f := &listFixture{
		t:     t,
		store: es.NewInMemoryStore(),
		list:  NewPoolList(),
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	reg := es.NewRegistry()
	f.repo = es.NewTypedRepository[*Pool](slog.Default(), f.store, reg, es.WithClock(func() time.Time {
		f.now = f.now.Add(time.Minute)
		return f.now
	}))
	f.proj = es.NewProjector(slog.Default(), f.store, reg, f.list)
	return f
}

func (f *listFixture) create(name, creator string) *Pool {
	p := f.repo.New()
	require.NoError(f.t, p.Create(NewID(), NewData(name, ""), creator))
	require.NoError(f.t, f.repo.Save(f.t.Context(), p))
	return p
}

func (f *listFixture) save(p *Pool) {
	require.NoError(f.t, f.repo.Save(f.t.Context(), p))
}

func (f *listFixture) items(filter *Filter) []ListItem {
	_, err := f.proj.CatchUp(f.t.Context())
	require.NoError(f.t, err)
	return f.list.Items(filter)
}

func names(items []ListItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func TestPoolList(t *testing.T) {
	f := newListFixture(t)

	math := f.create("Math", "alice")
	f.create("Physics", "bob")
	f.create("Applied Mathematics", "bob")

	require.NoError(t, math.AddQuestion(NewID()))
	require.NoError(t, math.AddQuestion(NewID()))
	require.NoError(t, math.SetConfiguration("a", TypedValue{Type: "t"}))
	require.NoError(t, math.SetConfiguration("a", TypedValue{Type: "t"}))
	require.NoError(t, math.SetData(NewData("Math", "numbers"), "carol"))
	f.save(math)

	items := f.items(nil)
	require.Equal(t, []string{"Math", "Physics", "Applied Mathematics"}, names(items))

	first := items[0]
	require.Equal(t, math.ID(), first.ID)
	require.Equal(t, "numbers", first.Description)
	require.Equal(t, "alice", first.Creator)
	require.Equal(t, 2, first.QuestionCount)
	require.Equal(t, 1, first.ConfigurationCount)
	require.True(t, first.UpdatedAt.After(first.CreatedAt))
}

func TestPoolList_Filter(t *testing.T) {
	f := newListFixture(t)
	f.create("Math", "alice")
	f.create("Physics", "bob")
	f.create("Applied Mathematics", "bob")

	require.Equal(t, []string{"Math", "Applied Mathematics"}, names(f.items(&Filter{Name: "math"})))
	require.Equal(t, []string{"Physics", "Applied Mathematics"}, names(f.items(&Filter{Creator: "bob"})))
	require.Equal(t, []string{"Applied Mathematics"}, names(f.items(&Filter{Name: "MATH", Creator: "bob"})))
	require.Empty(t, f.items(&Filter{Creator: "Bob"}))
	require.Len(t, f.items(&Filter{}), 3)
}

func TestPoolList_HidesDeleted(t *testing.T) {
	f := newListFixture(t)
	math := f.create("Math", "alice")
	f.create("Physics", "bob")
	require.Len(t, f.items(nil), 2)

	require.NoError(t, math.Delete("alice"))
	f.save(math)

	require.Equal(t, []string{"Physics"}, names(f.items(nil)))
}

func TestPoolList_QuestionCount(t *testing.T) {
	f := newListFixture(t)
	p := f.create("Math", "alice")
	q := NewID()
	require.NoError(t, p.AddQuestion(q))
	require.NoError(t, p.AddQuestion(NewID()))
	require.NoError(t, p.RemoveQuestion(q))
	f.save(p)

	items := f.items(nil)
	require.Len(t, items, 1)
	require.Equal(t, 1, items[0].QuestionCount)
}

func TestPoolList_IgnoresOtherAggregates(t *testing.T) {
	list := NewPoolList()
	err := list.Handle(t.Context(), es.Envelope{AggregateType: "counter"}, &QuestionAdded{})
	require.NoError(t, err)
	require.Empty(t, list.Items(nil))
}
