package browser

import (
	"encoding/json"
	"fmt"
)

// keyAttr marks each item node with a stable identity on first sight
const keyAttr = "data-notionx-key"

// jsString renders s as a JavaScript string literal
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// listItemsJS tags untagged item nodes and returns their keys in document order
func listItemsJS(itemSel string) string {
	return fmt.Sprintf(`(function() {
	window.__notionxSeq = window.__notionxSeq || 0;
	var out = [];
	document.querySelectorAll(%s).forEach(function(el) {
		if (!el.hasAttribute(%s)) {
			el.setAttribute(%s, 'k' + (++window.__notionxSeq));
		}
		out.push(el.getAttribute(%s));
	});
	return out;
})()`, jsString(itemSel), jsString(keyAttr), jsString(keyAttr), jsString(keyAttr))
}

// itemJS wraps body so it runs with `el` bound to the item with key, or
// returns fallback when the node is gone
func itemJS(key, fallback, body string) string {
	return fmt.Sprintf(`(function() {
	var el = document.querySelector('[%s=' + %s + ']');
	if (!el) return %s;
	%s
})()`, keyAttr, jsString(jsString(key)), fallback, body)
}

func authorHrefsJS(key, authorSel string) string {
	return itemJS(key, "[]", fmt.Sprintf(
		`return Array.from(el.querySelectorAll(%s)).map(function(a) { return a.getAttribute('href') || ''; });`,
		jsString(authorSel)))
}

// textJS joins text nodes, uses alt text for images and keeps line breaks
func textJS(key, textSel string) string {
	return itemJS(key, "''", fmt.Sprintf(`var root = el.querySelector(%s);
	if (!root) return '';
	var out = '';
	var walk = function(n) {
		n.childNodes.forEach(function(c) {
			if (c.nodeType === Node.TEXT_NODE) { out += c.textContent; return; }
			if (c.nodeType !== Node.ELEMENT_NODE) return;
			var tag = c.tagName.toLowerCase();
			if (tag === 'img') { out += c.getAttribute('alt') || ''; return; }
			if (tag === 'br') { out += '\n'; return; }
			if (tag === 'script' || tag === 'style') return;
			walk(c);
		});
	};
	walk(root);
	return out.trim();`, jsString(textSel)))
}

func existsJS(key, sel string) string {
	return itemJS(key, "false", fmt.Sprintf(`return el.querySelector(%s) !== null;`, jsString(sel)))
}

func attrJS(key, sel, attr string) string {
	return itemJS(key, "''", fmt.Sprintf(`var n = el.querySelector(%s);
	return n ? (n.getAttribute(%s) || '') : '';`, jsString(sel), jsString(attr)))
}

func scrollIntoTrailingViewJS(key string) string {
	return itemJS(key, "false", `el.scrollIntoView({block: 'end'}); return true;`)
}

// anchorJS returns the key of the item whose permalink carries statusID, the
// first item when none does, or '' without items
func anchorJS(itemSel, permalinkSel, statusID string) string {
	return fmt.Sprintf(`(function() {
	var items = Array.from(document.querySelectorAll(%s));
	if (items.length === 0) return '';
	var id = %s;
	var hit = items.find(function(el) {
		return id !== '' && Array.from(el.querySelectorAll(%s)).some(function(a) {
			var m = (a.getAttribute('href') || '').match(/\/status(?:es)?\/(\d+)/);
			return m !== null && m[1] === id;
		});
	}) || items[0];
	hit.scrollIntoView({block: 'center'});
	return hit.getAttribute(%s) || '';
})()`, jsString(itemSel), jsString(statusID), jsString(permalinkSel), jsString(keyAttr))
}

// rawStats are the counters as rendered
type rawStats struct {
	Created  string `json:"created"`
	Reply    string `json:"reply"`
	Repost   string `json:"repost"`
	Like     string `json:"like"`
	Bookmark string `json:"bookmark"`
	Views    string `json:"views"`
}

func statsJS(key string, s statsSelectors) string {
	return itemJS(key, "{}", fmt.Sprintf(`var txt = function(sel) {
		var n = el.querySelector(sel);
		return n ? (n.innerText || n.textContent || '').trim() : '';
	};
	var t = el.querySelector(%s);
	return {
		created: t ? (t.getAttribute('datetime') || '') : '',
		reply: txt(%s), repost: txt(%s), like: txt(%s), bookmark: txt(%s), views: txt(%s)
	};`, jsString(s.Time), jsString(s.Reply), jsString(s.Repost), jsString(s.Like), jsString(s.Bookmark), jsString(s.Views)))
}

type statsSelectors struct {
	Time, Reply, Repost, Like, Bookmark, Views string
}
