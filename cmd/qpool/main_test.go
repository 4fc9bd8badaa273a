package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/qpool-go/core/es"
	"github.com/codewandler/qpool-go/questionpool"
)

type cli struct {
	t *testing.T
}

// newCLI points the configuration at a fresh SQLite file so that state
// survives between invocations.
func newCLI(t *testing.T) *cli {
	t.Setenv("QPOOL_STORE_BACKEND", "sqlite")
	t.Setenv("QPOOL_STORE_SQLITE_PATH", filepath.Join(t.TempDir(), "qpool.db"))
	t.Setenv("QPOOL_USER", "alice")
	return &cli{t: t}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(c.t.Context(), args, &stdout, &stderr)
	return stdout.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err)
	return out
}

func (c *cli) mustJSON(v any, args ...string) {
	c.t.Helper()
	out := c.mustRun(append([]string{"-json"}, args...)...)
	require.NoError(c.t, json.Unmarshal([]byte(out), v))
}

func TestCLI_PoolLifecycle(t *testing.T) {
	c := newCLI(t)

	poolID := strings.TrimSpace(c.mustRun("create", "-name", "Algebra", "-description", "linear equations"))
	_, err := uuid.Parse(poolID)
	require.NoError(t, err)

	q1, q2 := questionpool.NewID().String(), questionpool.NewID().String()
	c.mustRun("add", poolID, q1)
	c.mustRun("add", poolID, q2)
	c.mustRun("remove", poolID, q1)
	c.mustRun("-user", "bob", "set-data", "-description", "quadratics", poolID)

	var v poolView
	c.mustJSON(&v, "show", poolID)
	require.Equal(t, poolID, v.ID.String())
	require.Equal(t, "Algebra", v.Name)
	require.Equal(t, "quadratics", v.Description)
	require.Equal(t, "alice", v.Creator)
	require.Equal(t, "bob", v.Editor)
	require.False(t, v.Deleted)
	require.Len(t, v.Questions, 1)
	require.Equal(t, q2, v.Questions[0].String())

	var items []questionpool.ListItem
	c.mustJSON(&items, "list", "-name", "alg")
	require.Len(t, items, 1)
	require.Equal(t, 1, items[0].QuestionCount)

	var envs []es.Envelope
	c.mustJSON(&envs, "events", poolID)
	require.Len(t, envs, 5)
	require.Equal(t, questionpool.EventPoolCreated, envs[0].Type)
	require.Equal(t, questionpool.EventPoolDataSet, envs[4].Type)

	c.mustRun("delete", poolID)
	items = nil
	c.mustJSON(&items, "list")
	require.Empty(t, items)

	c.mustJSON(&v, "show", poolID)
	require.True(t, v.Deleted)
}

func TestCLI_TextOutput(t *testing.T) {
	c := newCLI(t)
	poolID := strings.TrimSpace(c.mustRun("create", "-name", "Geometry"))

	out := c.mustRun("show", poolID)
	require.Contains(t, out, "Geometry")
	require.Contains(t, out, "alice")

	out = c.mustRun("list")
	require.Contains(t, out, "NAME")
	require.Contains(t, out, poolID)

	out = c.mustRun("events", poolID)
	require.Contains(t, out, questionpool.EventPoolCreated)
}

func TestCLI_CreateWithID(t *testing.T) {
	c := newCLI(t)
	id := questionpool.NewID().String()

	out := c.mustRun("create", "-id", id)
	require.Equal(t, id, strings.TrimSpace(out))

	_, err := c.run("create", "-id", id)
	require.ErrorIs(t, err, es.ErrValidationFailed)
}

func TestCLI_Stats(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("-backend", "memory", "-stats", "create", "-name", "x")
	require.Contains(t, out, `qpool_cqrs_commands_total{command_type="question_pool.create",outcome="ok"} 1`)
	require.Contains(t, out, "qpool_es_events_appended_total")
}

func TestCLI_Errors(t *testing.T) {
	c := newCLI(t)

	_, err := c.run()
	require.ErrorIs(t, err, errUsage)

	_, err = c.run("frobnicate")
	require.ErrorIs(t, err, errUsage)

	_, err = c.run("add", "not-an-id")
	require.ErrorIs(t, err, errUsage)

	_, err = c.run("show", "not-an-id")
	require.Error(t, err)

	_, err = c.run("show", questionpool.NewID().String())
	require.ErrorIs(t, err, es.ErrAggregateNotFound)

	_, err = c.run("-backend", "postgres", "list")
	require.Error(t, err)
}
