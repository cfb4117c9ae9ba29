package render

// Element is a node in the visible output container: the raster canvas or
// a replacement overlay such as the ASCII text block.
type Element interface {
	ElementKind() string
}

// Canvas is the raster output element.
type Canvas struct {
	W, H int
}

func (c *Canvas) ElementKind() string { return "canvas" }

// Container is the visible output host.
type Container struct {
	children []Element
}

func (c *Container) Append(e Element) {
	if e == nil || c.Contains(e) {
		return
	}
	c.children = append(c.children, e)
}

func (c *Container) Remove(e Element) bool {
	for i, x := range c.children {
		if x == e {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Container) Contains(e Element) bool {
	for _, x := range c.children {
		if x == e {
			return true
		}
	}
	return false
}

func (c *Container) Children() []Element {
	out := make([]Element, len(c.children))
	copy(out, c.children)
	return out
}

// Surface is the resizable display. Resize runs every registered hook
// synchronously so the next frame sees consistent sizes.
type Surface struct {
	Width, Height int
	Canvas        *Canvas
	Container     *Container

	hooks []func(w, h int)
}

func NewSurface(w, h int) *Surface {
	s := &Surface{
		Width:     w,
		Height:    h,
		Canvas:    &Canvas{W: w, H: h},
		Container: &Container{},
	}
	s.Container.Append(s.Canvas)
	return s
}

func (s *Surface) OnResize(fn func(w, h int)) {
	if fn != nil {
		s.hooks = append(s.hooks, fn)
	}
}

func (s *Surface) Resize(w, h int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	s.Width, s.Height = w, h
	s.Canvas.W, s.Canvas.H = w, h
	for _, fn := range s.hooks {
		fn(w, h)
	}
}

// CanvasAttached reports whether the raster output is visible.
func (s *Surface) CanvasAttached() bool { return s.Container.Contains(s.Canvas) }
