// internal/service/promotion/domain/fact.go
package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FactCart 是购物车事实的名称，条件里通过 fact: "cart" 引用。
const FactCart = "cart"

// FactSnapshot 是一次评估使用的事实快照：事实名 -> JSON 文档。
// 构建时即序列化，之后只读，保证一次评估看到的是同一时刻的购物车。
type FactSnapshot struct {
	facts map[string][]byte
}

// NewFactSnapshot 从任意可序列化的值构建快照。
func NewFactSnapshot(facts map[string]any) (*FactSnapshot, error) {
	s := &FactSnapshot{facts: make(map[string][]byte, len(facts))}
	for name, value := range facts {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal fact %q: %w", name, err)
		}
		s.facts[name] = raw
	}
	return s, nil
}

// NewCartSnapshot 以购物车为 cart 事实，合并调用方提供的其他事实。
// extra 中的 cart 会被忽略，购物车以 cart 参数为准。
func NewCartSnapshot(cart *Cart, extra map[string]any) (*FactSnapshot, error) {
	facts := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		if k == FactCart {
			continue
		}
		facts[k] = v
	}
	if cart != nil {
		facts[FactCart] = cart
	}
	return NewFactSnapshot(facts)
}

// Raw 返回事实的 JSON 文档。调用方不得修改返回的切片。
func (s *FactSnapshot) Raw(name string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	raw, ok := s.facts[name]
	return raw, ok
}

// Has 判断快照中是否存在该事实。
func (s *FactSnapshot) Has(name string) bool {
	_, ok := s.Raw(name)
	return ok
}

// Names 按字典序返回所有事实名。
func (s *FactSnapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.facts))
	for name := range s.facts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
