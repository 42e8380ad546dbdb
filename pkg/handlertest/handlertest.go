// Package handlertest は、ノードに届いたカーソルイベントを記録して検証する
package handlertest

import (
	"fmt"
	"strings"

	"github.com/zurustar/framecase/pkg/scene"
)

// TB は検証失敗を報告する先
// *testing.T はこれを満たす。Fatalf はテストをその場で終了させること
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Tester はノードに6つのハンドラを付けてイベントの到着を記録する
// マウスの5種類と、マウス操作がタッチとして漏れていないかを見るタッチ押下
type Tester struct {
	t    TB
	node *scene.Node

	down      bool
	up        bool
	over      bool
	out       bool
	move      bool
	touchDown bool
}

type slot struct {
	id     scene.EventID
	record func(*Tester) *bool
}

// ハンドラ表。登録と解除はこの表だけを見る
var slots = []slot{
	{scene.EventID{Type: scene.CursorDown, Source: scene.Mouse}, func(h *Tester) *bool { return &h.down }},
	{scene.EventID{Type: scene.CursorUp, Source: scene.Mouse}, func(h *Tester) *bool { return &h.up }},
	{scene.EventID{Type: scene.CursorOver, Source: scene.Mouse}, func(h *Tester) *bool { return &h.over }},
	{scene.EventID{Type: scene.CursorOut, Source: scene.Mouse}, func(h *Tester) *bool { return &h.out }},
	{scene.EventID{Type: scene.CursorMotion, Source: scene.Mouse}, func(h *Tester) *bool { return &h.move }},
	{scene.EventID{Type: scene.CursorDown, Source: scene.Touch}, func(h *Tester) *bool { return &h.touchDown }},
}

// New は node にハンドラを登録した Tester を作成する
func New(t TB, node *scene.Node) *Tester {
	h := &Tester{t: t, node: node}
	h.Reset()
	for _, s := range slots {
		s := s
		flag := s.record(h)
		node.SetEventHandler(s.id.Type, s.id.Source, func(ev *scene.Event) {
			if s.id.Source == scene.Mouse && ev.Type != s.id.Type {
				h.t.Helper()
				h.t.Fatalf("%s handler on %q received %s", s.id.Type, node.ID, ev.Type)
			}
			*flag = true
		})
	}
	return h
}

// Node は監視対象のノードを返す
func (h *Tester) Node() *scene.Node {
	return h.node
}

// AssertState は記録されたイベントを期待値と比較し、記録をリセットする
// タッチ押下は常に届いていないことを期待する
// 一致しない項目があれば、全てまとめて Fatalf でテストを終了する
func (h *Tester) AssertState(down, up, over, out, move bool) {
	h.t.Helper()
	var mismatches []string
	check := func(name string, want, got bool) {
		if want != got {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %v, got %v", name, want, got))
		}
	}
	check("down", down, h.down)
	check("up", up, h.up)
	check("over", over, h.over)
	check("out", out, h.out)
	check("move", move, h.move)
	check("touch down", false, h.touchDown)
	h.Reset()

	if len(mismatches) > 0 {
		h.t.Fatalf("unexpected events on %q: %s", h.node.ID, strings.Join(mismatches, "; "))
	}
}

// State は記録中のフラグを返す（down, up, over, out, move, touchDown）
func (h *Tester) State() (down, up, over, out, move, touchDown bool) {
	return h.down, h.up, h.over, h.out, h.move, h.touchDown
}

// Reset は全ての記録を消す
func (h *Tester) Reset() {
	h.down = false
	h.up = false
	h.over = false
	h.out = false
	h.move = false
	h.touchDown = false
}

// ClearHandlers は登録した6つのハンドラを外す
func (h *Tester) ClearHandlers() {
	for _, s := range slots {
		h.node.SetEventHandler(s.id.Type, s.id.Source, nil)
	}
}
