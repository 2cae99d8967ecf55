// Package extract 把半结构化页面解析成记录：目录页的 {href, 文本} 链接和
// "Recently Added" 表格行。只做解析，不做网络请求。
package extract

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrContentMissing 页面缺少 div.mw-parser-output 正文容器
	ErrContentMissing = errors.New("content container not found")
	// ErrTableMissing 页面缺少 .table-scrollable table tbody
	ErrTableMissing = errors.New("recently added table not found")
)

// Link 列表项里的第一个带 href 的链接
type Link struct {
	Href string
	Text string
}

// CoinRow "Recently Added" 表格中的一行
type CoinRow struct {
	Slug   string // /en/coins/ 之后的部分，可能为空
	Name   string
	Symbol string
}

// ListLinks 返回正文容器内每个 <li> 的第一个带 href 的 <a>（文档顺序）
func ListLinks(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse html")
	}
	content := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && hasClass(n, "mw-parser-output")
	})
	if content == nil {
		return nil, ErrContentMissing
	}

	var links []Link
	for _, li := range findAll(content, isElement(atom.Li)) {
		a := findFirst(li, func(n *html.Node) bool {
			_, ok := attr(n, "href")
			return n.DataAtom == atom.A && ok
		})
		if a == nil {
			continue
		}
		href, _ := attr(a, "href")
		links = append(links, Link{Href: href, Text: strings.TrimSpace(textOf(a))})
	}
	return links, nil
}

// RecentlyAddedRows 解析 CoinGecko "Recently Added" 页面表格
func RecentlyAddedRows(r io.Reader) ([]CoinRow, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse html")
	}
	tbody := findTableBody(doc)
	if tbody == nil {
		return nil, ErrTableMissing
	}

	var rows []CoinRow
	for _, tr := range findAll(tbody, isElement(atom.Tr)) {
		if len(findAll(tr, isElement(atom.Td))) < 2 {
			continue
		}
		anchor := findFirst(tr, func(n *html.Node) bool {
			return n.DataAtom == atom.A && hasClass(n, "tw-flex")
		})
		if anchor == nil {
			continue
		}
		nameSpan := findFirst(anchor, func(n *html.Node) bool {
			return n.DataAtom == atom.Span && hasClass(n, "tw-hidden")
		})
		if nameSpan == nil {
			continue
		}
		symbolSpan := nextSiblingElement(nameSpan, atom.Span)
		if symbolSpan == nil {
			continue
		}

		href, _ := attr(anchor, "href")
		slug := ""
		if i := strings.LastIndex(href, "/en/coins/"); i >= 0 {
			slug = strings.TrimSpace(href[i+len("/en/coins/"):])
		}
		rows = append(rows, CoinRow{
			Slug:   slug,
			Name:   strings.TrimSpace(textOf(nameSpan)),
			Symbol: strings.TrimSpace(textOf(symbolSpan)),
		})
	}
	return rows, nil
}

// findTableBody 等价于选择器 ".table-scrollable table tbody" 的第一个结果
func findTableBody(doc *html.Node) *html.Node {
	for _, wrap := range findAll(doc, func(n *html.Node) bool { return hasClass(n, "table-scrollable") }) {
		for _, table := range findAll(wrap, isElement(atom.Table)) {
			if tbody := findFirst(table, isElement(atom.Tbody)); tbody != nil {
				return tbody
			}
		}
	}
	return nil
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == a }
}

// findFirst 深度优先查找第一个匹配的后代（不含自身）
func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// findAll 按文档顺序返回所有匹配的后代（不含自身）
func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func nextSiblingElement(n *html.Node, a atom.Atom) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.DataAtom == a {
			return s
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
