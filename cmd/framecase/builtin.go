package main

import (
	"image"
	"image/color"
	"time"

	"github.com/zurustar/framecase/pkg/scene"
	"github.com/zurustar/framecase/pkg/testcase"
	"github.com/zurustar/framecase/pkg/timeline"
)

var (
	red   = color.NRGBA{0xff, 0x00, 0x00, 0xff}
	blue  = color.NRGBA{0x00, 0x00, 0xff, 0xff}
	white = color.NRGBA{0xff, 0xff, 0xff, 0xff}
)

// builtinTests は Go で書かれた組み込みのテスト
func builtinTests() testcase.Catalog {
	return testcase.Catalog{
		{Name: "mouse_events", Run: testMouseEvents},
		{Name: "touch_isolation", Run: testTouchIsolation},
		{Name: "nested_bubbling", Run: testNestedBubbling},
		{Name: "delay", Run: testDelay},
		{Name: "screenshot_changes", Run: testScreenshotChanges},
		{Name: "scene_snapshot", Run: testSceneSnapshot},
	}
}

func testMouseEvents(c *testcase.Case) {
	root := c.LoadEmptyScene(0, 0)
	button := scene.NewNode("button", image.Pt(20, 20), image.Pt(40, 30), red)
	root.AppendChild(button)
	w := c.Watch(button)

	c.Start(false, timeline.Seq(
		timeline.Each(
			func() { c.SendMouseEvent(scene.CursorMotion, 30, 30) },
			func() { w.AssertState(false, false, true, false, true) },
			func() { c.SendMouseEvent(scene.CursorDown, 30, 30) },
			func() { w.AssertState(true, false, false, false, false) },
			func() { c.SendMouseEvent(scene.CursorUp, 30, 30) },
			func() { w.AssertState(false, true, false, false, false) },
			func() { c.SendMouseEvent(scene.CursorMotion, 100, 100) },
			func() { w.AssertState(false, false, false, true, false) },
		),
		timeline.Do(w.ClearHandlers),
	))
}

func testTouchIsolation(c *testcase.Case) {
	root := c.LoadEmptyScene(0, 0)
	button := scene.NewNode("button", image.Pt(0, 0), image.Pt(50, 50), blue)
	root.AppendChild(button)

	touched := 0
	button.SetEventHandler(scene.CursorDown, scene.Touch, func(*scene.Event) { touched++ })

	c.Start(false, timeline.Each(
		func() { c.FakeClick(10, 10) },
		nil,
		func() { c.AssertApproxEqual(touched, 0) },
		func() {
			c.SendTouchEvents([]testcase.TouchData{
				{ID: 1, Type: scene.CursorDown, X: 10, Y: 10},
				{ID: 2, Type: scene.CursorDown, X: 20, Y: 20},
			})
		},
		nil,
		func() { c.AssertApproxEqual(touched, 2) },
	))
}

func testNestedBubbling(c *testcase.Case) {
	root := c.LoadEmptyScene(0, 0)
	outer := scene.NewNode("outer", image.Pt(10, 10), image.Pt(100, 80), blue)
	inner := scene.NewNode("inner", image.Pt(10, 10), image.Pt(20, 20), white)
	outer.AppendChild(inner)
	root.AppendChild(outer)

	var order []string
	record := func(ev *scene.Event) { order = append(order, ev.Node.ID) }
	inner.SetEventHandler(scene.CursorDown, scene.Mouse, record)
	outer.SetEventHandler(scene.CursorDown, scene.Mouse, record)

	c.Start(false, timeline.Each(
		func() { c.SendMouseEvent(scene.CursorDown, 25, 25) },
		nil,
		func() {
			if len(order) != 2 || order[0] != "inner" || order[1] != "outer" {
				c.T().Errorf("bubble order = %v, want [inner outer]", order)
			}
		},
	))
}

func testDelay(c *testcase.Case) {
	c.LoadEmptyScene(0, 0)
	p := c.Player()

	var before, after time.Duration
	c.Start(false, timeline.Each(
		func() { before = p.FrameTime(); c.Delay(5 * time.Millisecond) },
		func() { after = p.FrameTime() },
	))
	if after-before < 5*time.Millisecond {
		c.T().Errorf("delay too short: %v", after-before)
	}
}

func testScreenshotChanges(c *testcase.Case) {
	root := c.LoadEmptyScene(0, 0)
	box := scene.NewNode("box", image.Pt(40, 40), image.Pt(40, 40), red)
	root.AppendChild(box)

	c.Start(false, timeline.Each(
		func() {
			before, err := c.Player().Screenshot()
			if err != nil {
				c.T().Fatalf("screenshot: %v", err)
			}
			box.Color = blue
			after, err := c.Player().Screenshot()
			if err != nil {
				c.T().Fatalf("screenshot: %v", err)
			}
			if c.AreSimilarBmps(before, after, 0.1, 0.5) {
				c.T().Errorf("recolored scene should differ")
			}
			if !c.AreSimilarBmps(after, after, 0, 0) {
				c.T().Errorf("screenshot should match itself")
			}
		},
	))
}

// testSceneSnapshot はベースライン scene_snapshot.png と比較する
// ベースラインが無ければスキップする。作成するには一度実行して
// 結果ディレクトリの scene_snapshot.png をベースラインディレクトリにコピーする
func testSceneSnapshot(c *testcase.Case) {
	if c.SkipIf(!c.HasBaseline("scene_snapshot"), "no baseline for scene_snapshot") {
		return
	}
	root := c.LoadEmptyScene(0, 0)
	root.AppendChild(scene.NewNode("left", image.Pt(10, 10), image.Pt(60, 100), red))
	root.AppendChild(scene.NewNode("right", image.Pt(90, 10), image.Pt(60, 100), blue))

	c.Start(false, timeline.Each(nil, func() { c.CompareImage("scene_snapshot") }))
}
