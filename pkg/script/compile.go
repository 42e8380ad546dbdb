package script

import (
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/zurustar/framecase/pkg/handlertest"
	"github.com/zurustar/framecase/pkg/scene"
	"github.com/zurustar/framecase/pkg/testcase"
	"github.com/zurustar/framecase/pkg/timeline"
)

// ルートノードの予約名
const rootID = "root"

// Validate はスクリプトの構造を検証する
// ノードの参照、イベント種別、watch と expect の順序を確認する
func (s *Script) Validate() error {
	if s.Scene.Width < 0 || s.Scene.Height < 0 {
		return fmt.Errorf("%s: invalid scene size %dx%d", s.Name, s.Scene.Width, s.Scene.Height)
	}

	nodes := map[string]bool{rootID: true}
	for i, n := range s.Scene.Nodes {
		if n.ID == "" || n.ID == rootID {
			return fmt.Errorf("%s: node %d: invalid id %q", s.Name, i, n.ID)
		}
		if nodes[n.ID] {
			return fmt.Errorf("%s: duplicate node id %q", s.Name, n.ID)
		}
		if n.Parent != "" && !nodes[n.Parent] {
			return fmt.Errorf("%s: node %q: parent %q must be defined before it", s.Name, n.ID, n.Parent)
		}
		if _, err := parseColor(n.Color); err != nil {
			return fmt.Errorf("%s: node %q: %w", s.Name, n.ID, err)
		}
		nodes[n.ID] = true
	}

	watched := map[string]bool{}
	for i, st := range s.Steps {
		where := fmt.Sprintf("%s: step %d (%s)", s.Name, i, st.Action)
		switch st.Action {
		case "noop", "click":
		case "frames":
			if st.N < 0 {
				return fmt.Errorf("%s: negative frame count", where)
			}
		case "delay":
			if st.Ms < 0 {
				return fmt.Errorf("%s: negative delay", where)
			}
		case "mouse", "touch":
			t, err := scene.ParseEventType(st.Type)
			if err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
			if t != scene.CursorDown && t != scene.CursorUp && t != scene.CursorMotion {
				return fmt.Errorf("%s: %s events cannot be sent", where, t)
			}
		case "compare":
			if st.Image == "" {
				return fmt.Errorf("%s: missing image", where)
			}
		case "watch", "expect", "unwatch":
			if !nodes[st.Node] {
				return fmt.Errorf("%s: unknown node %q", where, st.Node)
			}
			switch st.Action {
			case "watch":
				watched[st.Node] = true
			case "expect":
				if !watched[st.Node] {
					return fmt.Errorf("%s: node %q is not watched", where, st.Node)
				}
			case "unwatch":
				if !watched[st.Node] {
					return fmt.Errorf("%s: node %q is not watched", where, st.Node)
				}
				delete(watched, st.Node)
			}
		default:
			return fmt.Errorf("%s: unknown action", where)
		}
	}
	return nil
}

// Test はスクリプトをテストケースに変換する
func (s *Script) Test() testcase.Test {
	return testcase.Test{
		Name: s.Name,
		Run:  s.run,
	}
}

func (s *Script) run(c *testcase.Case) {
	root := c.LoadEmptyScene(s.Scene.Width, s.Scene.Height)
	nodes := map[string]*scene.Node{rootID: root}
	for _, n := range s.Scene.Nodes {
		col, _ := parseColor(n.Color)
		node := scene.NewNode(n.ID, image.Pt(n.X, n.Y), image.Pt(n.Width, n.Height), col)
		if n.Sensitive != nil {
			node.Sensitive = *n.Sensitive
		}
		parent := root
		if n.Parent != "" {
			parent = nodes[n.Parent]
		}
		parent.AppendChild(node)
		nodes[n.ID] = node
	}

	r := &runner{c: c, nodes: nodes, watchers: map[string]*handlertest.Tester{}}
	steps := make([]timeline.Step, 0, len(s.Steps))
	for _, st := range s.Steps {
		steps = append(steps, r.compile(st))
	}
	c.Start(s.WarnOnDiff, steps...)

	// 残ったハンドラを外す
	for _, w := range r.watchers {
		w.ClearHandlers()
	}
}

// runner はスクリプト実行中の状態
type runner struct {
	c        *testcase.Case
	nodes    map[string]*scene.Node
	watchers map[string]*handlertest.Tester
}

// compile は1つの操作をタイムラインのステップに変換する
func (r *runner) compile(st Step) timeline.Step {
	c := r.c
	switch st.Action {
	case "frames":
		return timeline.Repeat(st.N, timeline.Noop())
	case "delay":
		d := time.Duration(st.Ms) * time.Millisecond
		return timeline.Do(func() { c.Delay(d) })
	case "click":
		return timeline.Do(func() { c.FakeClick(st.X, st.Y) })
	case "mouse":
		t, _ := scene.ParseEventType(st.Type)
		return timeline.Do(func() { c.SendMouseEvent(t, st.X, st.Y) })
	case "touch":
		t, _ := scene.ParseEventType(st.Type)
		return timeline.Do(func() { c.SendTouchEvent(st.ID, t, st.X, st.Y) })
	case "compare":
		return timeline.Do(func() { c.CompareImage(st.Image) })
	case "watch":
		return timeline.Do(func() { r.watchers[st.Node] = c.Watch(r.nodes[st.Node]) })
	case "expect":
		return timeline.Do(func() {
			r.watchers[st.Node].AssertState(st.Down, st.Up, st.Over, st.Out, st.Move)
		})
	case "unwatch":
		return timeline.Do(func() {
			r.watchers[st.Node].ClearHandlers()
			delete(r.watchers, st.Node)
		})
	default:
		return timeline.Noop()
	}
}

// parseColor は #RRGGBB または #RRGGBBAA を解析する
// 空文字列は白
func parseColor(s string) (color.NRGBA, error) {
	if s == "" {
		return color.NRGBA{0xff, 0xff, 0xff, 0xff}, nil
	}
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	c := color.NRGBA{b[0], b[1], b[2], 0xff}
	if len(b) == 4 {
		c.A = b[3]
	}
	return c, nil
}
