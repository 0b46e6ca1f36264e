package capability

import (
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/scraper"
	"github.com/dop251/goja"
)

// installDOM exposes parseHTML, parseXML, sanitizeHTML and stripHTML.
// Everything here is pure and synchronous.
func (s *scope) installDOM() error {
	parsers := map[string]func(string) (*scraper.Document, error){
		"parseHTML": scraper.ParseHTML,
		"parseXML":  scraper.ParseXML,
	}
	for name, parse := range parsers {
		parse := parse
		err := s.vm.Set(name, func(call goja.FunctionCall) goja.Value {
			doc, err := parse(call.Argument(0).String())
			if err != nil {
				s.throw(err)
			}
			return s.element(doc.Root())
		})
		if err != nil {
			return err
		}
	}

	if err := s.vm.Set("sanitizeHTML", func(call goja.FunctionCall) goja.Value {
		return s.vm.ToValue(s.sanitizer.Sanitize(call.Argument(0).String()))
	}); err != nil {
		return err
	}
	return s.vm.Set("stripHTML", func(call goja.FunctionCall) goja.Value {
		return s.vm.ToValue(s.sanitizer.Strip(call.Argument(0).String()))
	})
}

// element wraps a node. Children are resolved lazily so wrapping a node
// never walks its subtree.
func (s *scope) element(n *scraper.Node) goja.Value {
	vm := s.vm
	obj := vm.NewObject()

	_ = obj.Set("tagName", n.Tag())
	_ = obj.Set("text", n.Text())
	_ = obj.Set("html", n.HTML())
	_ = obj.Set("outerHTML", n.OuterHTML())

	attrs := vm.NewObject()
	for k, v := range n.Attrs() {
		_ = attrs.Set(k, v)
	}
	_ = obj.Set("attrs", attrs)

	_ = obj.Set("attr", func(call goja.FunctionCall) goja.Value {
		if v, ok := n.Attr(call.Argument(0).String()); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.DefineAccessorProperty("children", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return s.elements(n.Children())
	}), nil, goja.FLAG_TRUE, goja.FLAG_TRUE)

	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		found, err := n.First(call.Argument(0).String())
		if err != nil {
			s.throw(err)
		}
		return s.optional(found)
	})
	_ = obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		found, err := n.Find(call.Argument(0).String())
		if err != nil {
			s.throw(err)
		}
		return s.elements(found)
	})
	_ = obj.Set("xpath", func(call goja.FunctionCall) goja.Value {
		found, err := n.XPathOne(call.Argument(0).String())
		if err != nil {
			s.throw(err)
		}
		return s.optional(found)
	})
	_ = obj.Set("xpathAll", func(call goja.FunctionCall) goja.Value {
		found, err := n.XPath(call.Argument(0).String())
		if err != nil {
			s.throw(err)
		}
		return s.elements(found)
	})
	return obj
}

func (s *scope) optional(n *scraper.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	return s.element(n)
}

func (s *scope) elements(nodes []*scraper.Node) goja.Value {
	items := make([]interface{}, len(nodes))
	for i, n := range nodes {
		items[i] = s.element(n)
	}
	return s.vm.NewArray(items...)
}
