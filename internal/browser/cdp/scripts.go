package cdp

import (
	"fmt"

	json "github.com/json-iterator/go"
)

// jsLiteral encodes v as a JavaScript literal. JSON is a subset of JS.
func jsLiteral(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

const pageInfoScript = `({url: location.href, width: window.innerWidth, height: window.innerHeight})`

// snapshotScript collects tag, text, attributes, sibling index, viewport
// box and the listed computed properties for every match of query.
func snapshotScript(query string, props []string) string {
	return fmt.Sprintf(`(() => {
  const props = %s;
  return Array.from(document.querySelectorAll(%s), (el) => {
    const r = el.getBoundingClientRect();
    const cs = window.getComputedStyle(el);
    const styles = {};
    for (const p of props) styles[p] = cs.getPropertyValue(p);
    const attrs = {};
    for (const a of el.attributes) attrs[a.name] = a.value;
    const parent = el.parentElement;
    return {
      tag: el.tagName,
      text: el.textContent || "",
      attrs,
      index: parent ? Array.prototype.indexOf.call(parent.children, el) + 1 : 0,
      rect: {x: r.x, y: r.y, width: r.width, height: r.height},
      styles,
    };
  });
})()`, jsLiteral(props), jsLiteral(query))
}

func setRootPropertyScript(name, value string) string {
	return fmt.Sprintf(`document.documentElement.style.setProperty(%s, %s)`, jsLiteral(name), jsLiteral(value))
}

// mergeStyleScript assigns style onto the first match of selector. Custom
// and hyphenated names go through setProperty; camelCase keys are assigned
// directly. A selector the page rejects is reported, not thrown.
func mergeStyleScript(selector string, style map[string]string) string {
	if style == nil {
		style = map[string]string{}
	}
	return fmt.Sprintf(`((sel, style) => {
  let el;
  try {
    el = document.querySelector(sel);
  } catch (e) {
    return {matched: false, error: String((e && e.message) || e)};
  }
  if (!el) return {matched: false};
  for (const [k, v] of Object.entries(style)) {
    if (k.includes("-")) el.style.setProperty(k, v);
    else el.style[k] = v;
  }
  return {matched: true};
})(%s, %s)`, jsLiteral(selector), jsLiteral(style))
}
