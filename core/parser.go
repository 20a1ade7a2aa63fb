// core/parser.go
package core

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chhz0/dslproc/types"
)

// 块结束标记：以空白分隔的独立单词，可与其他内容同处一行
const blockTerminator = "end"

type line struct {
	no   int
	text string
}

type block struct {
	index int
	lines []line
}

// Parse 把 DSL 文本解析为条目序列。任一块出错即整体失败，不返回部分结果。
func Parse(text string, reg *Registry) ([]types.Item, error) {
	var items []types.Item
	for _, b := range splitBlocks(text) {
		head := b.lines[0]
		if _, ok := reg.Lookup(head.text); !ok {
			return nil, &ParseError{Kind: ErrUnknownType, Block: b.index, Line: head.no, Text: head.text}
		}

		opts := types.OptionMap{}
		for _, l := range b.lines[1:] {
			key, value, ok := scanOption(l.text)
			if !ok {
				return nil, &ParseError{Kind: ErrMalformedOption, Block: b.index, Line: l.no, Text: l.text}
			}
			opts.Set(key, value)
		}
		items = append(items, types.Item{Type: head.text, Options: opts})
	}
	return items, nil
}

// splitBlocks 按 end 单词切块，去掉空行；末尾未闭合的块同样保留
func splitBlocks(text string) []block {
	var (
		blocks []block
		cur    []line
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		blocks = append(blocks, block{index: len(blocks) + 1, lines: cur})
		cur = nil
	}

	for i, raw := range strings.Split(text, "\n") {
		for _, seg := range splitLine(raw) {
			if seg.end {
				flush()
				continue
			}
			if t := strings.TrimSpace(seg.text); t != "" {
				cur = append(cur, line{no: i + 1, text: t})
			}
		}
	}
	flush()
	return blocks
}

type segment struct {
	text string
	end  bool
}

// splitLine 在行内的每个 end 单词处切开。
// 冒号后第一对单引号里的内容是选项值，其中的 end 不算结束标记。
func splitLine(s string) []segment {
	lo, hi := quotedSpan(s)

	var segs []segment
	start := 0
	for i := 0; i < len(s); {
		if i == lo {
			i = hi
			continue
		}
		if isTerminatorAt(s, i) {
			segs = append(segs, segment{text: s[start:i]}, segment{end: true})
			i += len(blockTerminator)
			start = i
			continue
		}
		i++
	}
	return append(segs, segment{text: s[start:]})
}

// quotedSpan 返回值引号区间 [lo, hi)，没有时 lo 为 -1。未闭合的引号延续到行尾。
func quotedSpan(s string) (lo, hi int) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return -1, -1
	}
	open := strings.IndexByte(s[colon+1:], '\'')
	if open < 0 {
		return -1, -1
	}
	lo = colon + 1 + open
	closing := strings.IndexByte(s[lo+1:], '\'')
	if closing < 0 {
		return lo, len(s)
	}
	return lo, lo + 1 + closing + 1
}

func isTerminatorAt(s string, i int) bool {
	if !strings.HasPrefix(s[i:], blockTerminator) {
		return false
	}
	j := i + len(blockTerminator)
	return (i == 0 || isBlank(s[i-1])) && (j == len(s) || isBlank(s[j]))
}

func isBlank(b byte) bool {
	return b < utf8.RuneSelf && unicode.IsSpace(rune(b))
}

// scanOption 解析 key: 'value'。
// key 取第一个冒号之前的内容；value 取第一对单引号之间的内容，
// 因此值里出现单引号时会在第一个引号处截断，闭合引号之后的内容忽略。
func scanOption(s string) (key, value string, ok bool) {
	key, rest, found := strings.Cut(s, ":")
	if !found {
		return "", "", false
	}
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if !strings.HasPrefix(rest, "'") {
		return "", "", false
	}
	value, _, found = strings.Cut(rest[1:], "'")
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(key), value, true
}
