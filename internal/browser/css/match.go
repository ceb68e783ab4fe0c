package css

import (
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Match reports whether n matches any of the rule's selectors, and the
// highest specificity among the selectors that matched.
func (r Rule) Match(n *html.Node) (cascadia.Specificity, bool) {
	var best cascadia.Specificity
	found := false
	for _, sel := range r.Selectors {
		if !sel.Match(n) {
			continue
		}
		if s := sel.Specificity(); !found || best.Less(s) {
			best = s
		}
		found = true
	}
	return best, found
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or adds an attribute.
func SetAttr(n *html.Node, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// ChildIndex is the 1-based position of n among its parent's element
// children. It is false when n has no element parent.
func ChildIndex(n *html.Node) (int, bool) {
	if parentElement(n) == nil {
		return 0, false
	}
	idx := 1
	for s := previousElement(n); s != nil; s = previousElement(s) {
		idx++
	}
	return idx, true
}

func parentElement(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

func previousElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}
