package scene

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

type cursorKey struct {
	source Source
	id     int
}

// Canvas owns the root node and routes cursor events into the tree.
type Canvas struct {
	root    *Node
	under   map[cursorKey]*Node
	bgColor color.NRGBA
}

// NewCanvas creates a canvas whose root node covers width x height.
func NewCanvas(width, height int) *Canvas {
	root := NewNode("root", image.Point{}, image.Pt(width, height), color.NRGBA{})
	return &Canvas{
		root:    root,
		under:   make(map[cursorKey]*Node),
		bgColor: color.NRGBA{0, 0, 0, 255},
	}
}

// Root returns the root node.
func (c *Canvas) Root() *Node {
	return c.root
}

// Size returns the canvas size.
func (c *Canvas) Size() image.Point {
	return c.root.Size
}

// HitTest returns the topmost sensitive node containing p, or nil.
func (c *Canvas) HitTest(p image.Point) *Node {
	return hitTest(c.root, p)
}

func hitTest(n *Node, p image.Point) *Node {
	if !n.Sensitive || !p.In(n.AbsRect()) {
		return nil
	}
	for i := len(n.children) - 1; i >= 0; i-- {
		if found := hitTest(n.children[i], p); found != nil {
			return found
		}
	}
	return n
}

// Dispatch delivers a cursor event. Over/out events are synthesized when the
// node under the cursor changes; the event itself then bubbles from the hit
// node up to the root.
func (c *Canvas) Dispatch(ev Event) {
	key := cursorKey{source: ev.Source, id: ev.CursorID}
	target := c.HitTest(ev.Pos)

	if prev := c.under[key]; prev != target {
		c.crossing(prev, target, ev)
		if target == nil {
			delete(c.under, key)
		} else {
			c.under[key] = target
		}
	}

	for n := target; n != nil; n = n.parent {
		e := ev
		n.HandleEvent(&e)
	}

	// 指を離したタッチカーソルは消滅する
	if ev.Source == Touch && ev.Type == CursorUp {
		if last := c.under[key]; last != nil {
			c.crossing(last, nil, ev)
		}
		delete(c.under, key)
	}
}

// crossing sends CursorOut to the nodes left and CursorOver to the nodes
// entered, outermost first for over and innermost first for out.
func (c *Canvas) crossing(from, to *Node, ev Event) {
	fromChain := chain(from)
	toChain := chain(to)
	inTo := make(map[*Node]bool, len(toChain))
	for _, n := range toChain {
		inTo[n] = true
	}
	inFrom := make(map[*Node]bool, len(fromChain))
	for _, n := range fromChain {
		inFrom[n] = true
	}

	for _, n := range fromChain {
		if inTo[n] {
			continue
		}
		e := ev
		e.Type = CursorOut
		n.HandleEvent(&e)
	}
	for i := len(toChain) - 1; i >= 0; i-- {
		n := toChain[i]
		if inFrom[n] {
			continue
		}
		e := ev
		e.Type = CursorOver
		n.HandleEvent(&e)
	}
}

// chain returns n and its ancestors, innermost first.
func chain(n *Node) []*Node {
	var out []*Node
	for ; n != nil; n = n.parent {
		out = append(out, n)
	}
	return out
}

// Render paints the canvas in software.
func (c *Canvas) Render() *image.NRGBA {
	size := c.Size()
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c.bgColor), image.Point{}, draw.Src)
	paint(dst, c.root)
	return dst
}

func paint(dst draw.Image, n *Node) {
	if n.Color.A > 0 {
		r := n.AbsRect().Intersect(dst.Bounds())
		draw.Draw(dst, r, image.NewUniform(n.Color), image.Point{}, draw.Over)
	}
	for _, child := range n.children {
		paint(dst, child)
	}
}
