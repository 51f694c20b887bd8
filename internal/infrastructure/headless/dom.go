package headless

import (
	"strings"

	"github.com/grafana/sobek"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// The document model exposed to scripts is deliberately small: lookups by
// id, tag and simple selectors, text and attribute access, element creation.

func (p *page) bindDocument() *sobek.Object {
	vm := p.vm
	doc := vm.NewObject()

	_ = doc.DefineAccessorProperty("title",
		vm.ToValue(func(sobek.FunctionCall) sobek.Value { return vm.ToValue(p.title) }),
		vm.ToValue(func(call sobek.FunctionCall) sobek.Value {
			p.setTitle(call.Argument(0).String())
			return sobek.Undefined()
		}),
		sobek.FLAG_TRUE, sobek.FLAG_TRUE)
	_ = doc.DefineAccessorProperty("readyState",
		vm.ToValue(func(sobek.FunctionCall) sobek.Value {
			if p.loading {
				return vm.ToValue("loading")
			}
			return vm.ToValue("complete")
		}), nil, sobek.FLAG_TRUE, sobek.FLAG_TRUE)
	_ = doc.DefineAccessorProperty("body",
		vm.ToValue(func(sobek.FunctionCall) sobek.Value { return p.wrap(findElement(p.root, "body")) }),
		nil, sobek.FLAG_TRUE, sobek.FLAG_TRUE)
	_ = doc.DefineAccessorProperty("documentElement",
		vm.ToValue(func(sobek.FunctionCall) sobek.Value { return p.wrap(findElement(p.root, "html")) }),
		nil, sobek.FLAG_TRUE, sobek.FLAG_TRUE)
	_ = doc.Set("URL", p.url)

	_ = doc.Set("getElementById", func(call sobek.FunctionCall) sobek.Value {
		id := call.Argument(0).String()
		return p.wrap(findFirst(p.root, func(n *html.Node) bool { return attr(n, "id") == id }))
	})
	_ = doc.Set("getElementsByTagName", func(call sobek.FunctionCall) sobek.Value {
		tag := strings.ToLower(call.Argument(0).String())
		return p.wrapAll(findAll(p.root, func(n *html.Node) bool { return tag == "*" || n.Data == tag }))
	})
	_ = doc.Set("querySelector", func(call sobek.FunctionCall) sobek.Value {
		return p.wrap(findFirst(p.root, selector(call.Argument(0).String())))
	})
	_ = doc.Set("querySelectorAll", func(call sobek.FunctionCall) sobek.Value {
		return p.wrapAll(findAll(p.root, selector(call.Argument(0).String())))
	})
	_ = doc.Set("createElement", func(call sobek.FunctionCall) sobek.Value {
		tag := strings.ToLower(call.Argument(0).String())
		return p.wrap(&html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))})
	})
	return doc
}

func (p *page) setTitle(title string) {
	p.title = title
	if n := findElement(p.root, "title"); n != nil {
		setText(n, title)
	} else if head := findElement(p.root, "head"); head != nil {
		n := &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		setText(n, title)
		head.AppendChild(n)
	}
	view := p.view
	view.queue.enqueue(func() {
		if view.surface != nil {
			view.surface.state.Title = title
		}
		if !view.destroyed {
			view.queue.sink.TitleChanged(view.id, title)
		}
	})
}

func (p *page) wrapAll(nodes []*html.Node) sobek.Value {
	items := make([]any, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, p.wrap(n))
	}
	return p.vm.NewArray(items...)
}

// wrap returns the script object of n, creating it on first use so that
// identity comparisons hold in scripts.
func (p *page) wrap(n *html.Node) sobek.Value {
	if n == nil {
		return sobek.Null()
	}
	if obj, ok := p.nodes[n]; ok {
		return obj
	}
	vm := p.vm
	obj := vm.NewObject()
	p.nodes[n] = obj

	getter := func(fn func() sobek.Value) sobek.Value {
		return vm.ToValue(func(sobek.FunctionCall) sobek.Value { return fn() })
	}
	_ = obj.Set("tagName", strings.ToUpper(n.Data))
	_ = obj.DefineAccessorProperty("id",
		getter(func() sobek.Value { return vm.ToValue(attr(n, "id")) }),
		vm.ToValue(func(call sobek.FunctionCall) sobek.Value {
			setAttr(n, "id", call.Argument(0).String())
			return sobek.Undefined()
		}), sobek.FLAG_TRUE, sobek.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("className",
		getter(func() sobek.Value { return vm.ToValue(attr(n, "class")) }),
		vm.ToValue(func(call sobek.FunctionCall) sobek.Value {
			setAttr(n, "class", call.Argument(0).String())
			return sobek.Undefined()
		}), sobek.FLAG_TRUE, sobek.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("textContent",
		getter(func() sobek.Value { return vm.ToValue(textContent(n)) }),
		vm.ToValue(func(call sobek.FunctionCall) sobek.Value {
			setText(n, call.Argument(0).String())
			return sobek.Undefined()
		}), sobek.FLAG_TRUE, sobek.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("innerHTML",
		getter(func() sobek.Value { return vm.ToValue(innerHTML(n)) }),
		vm.ToValue(func(call sobek.FunctionCall) sobek.Value {
			if err := setInnerHTML(n, call.Argument(0).String()); err != nil {
				panic(vm.NewGoError(err))
			}
			return sobek.Undefined()
		}), sobek.FLAG_TRUE, sobek.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("parentElement",
		getter(func() sobek.Value {
			if n.Parent == nil || n.Parent.Type != html.ElementNode {
				return sobek.Null()
			}
			return p.wrap(n.Parent)
		}), nil, sobek.FLAG_TRUE, sobek.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("children",
		getter(func() sobek.Value {
			var kids []*html.Node
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode {
					kids = append(kids, c)
				}
			}
			return p.wrapAll(kids)
		}), nil, sobek.FLAG_TRUE, sobek.FLAG_TRUE)

	_ = obj.Set("getAttribute", func(call sobek.FunctionCall) sobek.Value {
		name := strings.ToLower(call.Argument(0).String())
		for _, a := range n.Attr {
			if a.Key == name {
				return vm.ToValue(a.Val)
			}
		}
		return sobek.Null()
	})
	_ = obj.Set("setAttribute", func(call sobek.FunctionCall) sobek.Value {
		setAttr(n, strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
		return sobek.Undefined()
	})
	_ = obj.Set("appendChild", func(call sobek.FunctionCall) sobek.Value {
		child := p.unwrap(call.Argument(0))
		if child == nil {
			panic(vm.NewTypeError("appendChild: argument is not an element"))
		}
		if child.Parent != nil {
			child.Parent.RemoveChild(child)
		}
		n.AppendChild(child)
		return call.Argument(0)
	})
	_ = obj.Set("remove", func(sobek.FunctionCall) sobek.Value {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return sobek.Undefined()
	})
	_ = obj.Set("querySelector", func(call sobek.FunctionCall) sobek.Value {
		return p.wrap(findFirst(n, selector(call.Argument(0).String())))
	})
	return obj
}

func (p *page) unwrap(v sobek.Value) *html.Node {
	obj, ok := v.(*sobek.Object)
	if !ok {
		return nil
	}
	for n, o := range p.nodes {
		if o == obj {
			return n
		}
	}
	return nil
}

// selector matches "#id", ".class", "tag" and "tag.class".
func selector(sel string) func(*html.Node) bool {
	sel = strings.TrimSpace(sel)
	switch {
	case strings.HasPrefix(sel, "#"):
		id := sel[1:]
		return func(n *html.Node) bool { return attr(n, "id") == id }
	case strings.Contains(sel, "."):
		tag, class, _ := strings.Cut(sel, ".")
		tag = strings.ToLower(tag)
		return func(n *html.Node) bool {
			return (tag == "" || n.Data == tag) && hasClass(n, class)
		}
	default:
		tag := strings.ToLower(sel)
		return func(n *html.Node) bool { return n.Data == tag }
	}
}

func findElement(root *html.Node, tag string) *html.Node {
	return findFirst(root, func(n *html.Node) bool { return n.Data == tag })
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	for n := range root.Descendants() {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
	}
	return nil
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for n := range root.Descendants() {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
	}
	return out
}

// inlineScripts returns the classic inline scripts of the document in order.
func inlineScripts(root *html.Node) []string {
	var out []string
	for _, n := range findAll(root, func(n *html.Node) bool { return n.DataAtom == atom.Script }) {
		if attr(n, "src") != "" {
			continue
		}
		switch strings.ToLower(attr(n, "type")) {
		case "", "text/javascript", "application/javascript":
			out = append(out, textContent(n))
		}
	}
	return out
}

func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return b.String()
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func innerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

func setInnerHTML(n *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return err
	}
	setText(n, "")
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
