// internal/service/promotion/domain/path.go
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SegmentKind 区分路径中的一段是对象键、数组下标还是 [*] 通配。
type SegmentKind uint8

const (
	SegmentKey SegmentKind = iota + 1
	SegmentIndex
	SegmentWildcard
)

// PathSegment 是解析后的一段路径。
type PathSegment struct {
	Kind  SegmentKind
	Key   string
	Index int
}

// ParsePath 解析 $.items[0].price、$['gift-card'] 这类路径。"" 与 "$" 表示整个事实，返回空切片。
// 键按字面处理，不支持过滤表达式和递归下降。
func ParsePath(path string) ([]PathSegment, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, nil
	}
	if !strings.HasPrefix(p, "$") {
		return nil, fmt.Errorf("path %q must start with '$'", path)
	}

	var segs []PathSegment
	for i := 1; i < len(p); {
		switch p[i] {
		case '.':
			j := i + 1
			for j < len(p) && p[j] != '.' && p[j] != '[' {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("path %q: empty key at offset %d", path, i)
			}
			segs = append(segs, PathSegment{Kind: SegmentKey, Key: p[i+1 : j]})
			i = j

		case '[':
			seg, next, err := parseBracket(p, i)
			if err != nil {
				return nil, fmt.Errorf("path %q: %v", path, err)
			}
			segs = append(segs, seg)
			i = next

		default:
			return nil, fmt.Errorf("path %q: unexpected %q at offset %d", path, p[i], i)
		}
	}
	return segs, nil
}

// parseBracket 解析从 p[i] == '[' 开始的一段，返回下一段的起始位置。
func parseBracket(p string, i int) (PathSegment, int, error) {
	if i+1 < len(p) && (p[i+1] == '\'' || p[i+1] == '"') {
		quote := p[i+1]
		end := strings.IndexByte(p[i+2:], quote)
		if end < 0 || i+2+end+1 >= len(p) || p[i+2+end+1] != ']' {
			return PathSegment{}, 0, fmt.Errorf("unterminated quoted key at offset %d", i)
		}
		key := p[i+2 : i+2+end]
		if key == "" {
			return PathSegment{}, 0, fmt.Errorf("empty key at offset %d", i)
		}
		return PathSegment{Kind: SegmentKey, Key: key}, i + 2 + end + 2, nil
	}

	end := strings.IndexByte(p[i:], ']')
	if end < 0 {
		return PathSegment{}, 0, fmt.Errorf("unterminated '[' at offset %d", i)
	}
	inner := p[i+1 : i+end]
	next := i + end + 1
	if inner == "*" {
		return PathSegment{Kind: SegmentWildcard}, next, nil
	}
	n, err := strconv.Atoi(inner)
	if err != nil || n < 0 || strings.HasPrefix(inner, "+") {
		return PathSegment{}, 0, fmt.Errorf("invalid index %q at offset %d", inner, i)
	}
	return PathSegment{Kind: SegmentIndex, Index: n}, next, nil
}
