package testcase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurustar/framecase/pkg/player"
	"github.com/zurustar/framecase/pkg/scene"
	"github.com/zurustar/framecase/pkg/timeline"
)

func sampleCatalog() Catalog {
	return Catalog{
		{Name: "pass", Run: func(c *Case) {
			c.LoadEmptyScene(0, 0)
			c.Start(false, timeline.Noop())
		}},
		{Name: "fail", Run: func(c *Case) {
			c.AssertApproxEqual(1, 2)
			c.T().Log("not reached")
		}},
		{Name: "error", Run: func(c *Case) {
			c.T().Errorf("soft failure")
			c.T().Log("still running")
		}},
		{Name: "skip", Run: func(c *Case) {
			c.Skip("not supported")
		}},
		{Name: "panic", Run: func(c *Case) {
			c.Start(false, timeline.Do(func() { panic("boom") }))
		}},
	}
}

func TestCatalog(t *testing.T) {
	cat := sampleCatalog()
	assert.Equal(t, []string{"pass", "fail", "error", "skip", "panic"}, cat.Names())

	test, ok := cat.Lookup("skip")
	assert.True(t, ok)
	assert.Equal(t, "skip", test.Name)

	_, ok = cat.Lookup("nope")
	assert.False(t, ok)
}

func TestNewSuite(t *testing.T) {
	s, err := NewSuite(sampleCatalog(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())

	s, err = NewSuite(sampleCatalog(), []string{"skip", "pass"})
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, "skip", s.Tests()[0].Name)
	assert.Equal(t, "pass", s.Tests()[1].Name)

	_, err = NewSuite(sampleCatalog(), []string{"pass", "missing"})
	assert.True(t, errors.Is(err, ErrUnknownTest))
	assert.Contains(t, err.Error(), "no test named missing")
}

func TestMustSuite_ExitsOnUnknownName(t *testing.T) {
	var code int
	exited := false
	exit = func(c int) { code = c; exited = true }
	t.Cleanup(func() { exit = os.Exit })

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	s := MustSuite(sampleCatalog(), []string{"missing"}, log)
	assert.Nil(t, s)
	assert.True(t, exited)
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "no test named missing")

	exited = false
	s = MustSuite(sampleCatalog(), []string{"pass"}, log)
	assert.NotNil(t, s)
	assert.False(t, exited)
}

func TestRunAll(t *testing.T) {
	s, err := NewSuite(sampleCatalog(), nil)
	require.NoError(t, err)

	var stderr bytes.Buffer
	reports := s.RunAll(context.Background(), newPlayer, Env{Stderr: &stderr})
	require.Len(t, reports, 5)

	byName := map[string]Report{}
	for _, r := range reports {
		byName[r.Name] = r
	}

	assert.True(t, byName["pass"].Passed)
	assert.False(t, byName["pass"].Skipped)

	assert.False(t, byName["fail"].Passed)
	assert.Equal(t, []string{"almostEqual: 1 != 2"}, byName["fail"].Messages)

	assert.False(t, byName["error"].Passed)
	assert.Equal(t, []string{"soft failure", "still running"}, byName["error"].Messages)

	assert.True(t, byName["skip"].Skipped)
	assert.True(t, strings.HasPrefix(stderr.String(), "skipping: not supported"))

	assert.False(t, byName["panic"].Passed)
	assert.Equal(t, []string{"panic: boom"}, byName["panic"].Messages)

	passed, failed, skipped := Summarize(reports)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 3, failed)
	assert.Equal(t, 1, skipped)
}

func TestRunAll_Canceled(t *testing.T) {
	s, err := NewSuite(sampleCatalog(), []string{"pass"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reports := s.RunAll(ctx, newPlayer, Env{})
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Skipped)
}

func TestRunAll_FreshPlayerPerTest(t *testing.T) {
	var players []player.Player
	factory := func() player.Player {
		p := newPlayer()
		players = append(players, p)
		return p
	}
	s, err := NewSuite(sampleCatalog(), []string{"pass", "panic", "pass"})
	require.NoError(t, err)

	s.RunAll(context.Background(), factory, Env{})
	assert.Len(t, players, 3)
	for _, p := range players {
		assert.False(t, p.IsPlaying())
	}
}

func TestSuite_Run(t *testing.T) {
	cat := Catalog{
		{Name: "click", Run: func(c *Case) {
			button := addButton(c.LoadEmptyScene(0, 0))
			w := c.Watch(button)
			c.Start(false, timeline.Each(
				func() { c.FakeClick(20, 20) },
				func() { w.AssertState(true, true, true, false, false) },
			))
		}},
		{Name: "skipped", Run: func(c *Case) {
			c.Skip("demo")
		}},
	}
	s, err := NewSuite(cat, nil)
	require.NoError(t, err)
	s.Run(t, newPlayer, Env{Stderr: &bytes.Buffer{}})
}

func TestRunAll_UnexpectedEventEndsTest(t *testing.T) {
	after := false
	cat := Catalog{
		{Name: "touch_bleed", Run: func(c *Case) {
			button := addButton(c.LoadEmptyScene(0, 0))
			w := c.Watch(button)
			c.Start(false, timeline.Each(
				func() { c.SendTouchEvent(1, scene.CursorDown, 20, 20) },
				func() { w.AssertState(false, false, false, false, false) },
				func() { after = true },
			))
		}},
	}
	s, err := NewSuite(cat, nil)
	require.NoError(t, err)

	reports := s.RunAll(context.Background(), newPlayer, Env{Stderr: &bytes.Buffer{}})
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Passed)
	require.Len(t, reports[0].Messages, 1)
	assert.Contains(t, reports[0].Messages[0], "touch down: expected false, got true")
	assert.False(t, after, "actions after the failed check should not run")
}
