// internal/service/promotion/domain/stacking.go
package domain

import "sort"

// StackingCandidate 是通过条件评估的促销及其预估优惠金额。
type StackingCandidate struct {
	Promotion *CompiledPromotion
	Value     float64
}

// exclusiveGroup 是互斥竞争中的一个参赛者：单个 none 促销，或同一受限类的全部促销。
type exclusiveGroup struct {
	key     string // 组内最小的促销 ID，用于平局裁决
	members []StackingCandidate
	cents   int64
}

// ResolveStacking 按 stackAbility 从通过的促销中选出最终生效的集合。
//
//   - all 类促销总是生效；
//   - 每个 none 促销单独参赛，每个受限类作为整体参赛，金额最高者胜出；
//   - 金额相同时取最小 ID，并附带一条 StackingConflictError 诊断。
//
// 未声明 stackAbility 的促销按 none 处理。结果按促销 ID 升序。
func ResolveStacking(passed []StackingCandidate) ([]StackingCandidate, []Diagnostic) {
	var (
		applied    []StackingCandidate
		groups     []*exclusiveGroup
		restricted = map[StackAbility]*exclusiveGroup{}
	)

	for _, c := range passed {
		stack := c.Promotion.Promotion.StackAbility
		switch {
		case stack == StackAll:
			applied = append(applied, c)
		case stack.IsRestricted():
			g, ok := restricted[stack]
			if !ok {
				g = &exclusiveGroup{key: c.Promotion.ID()}
				restricted[stack] = g
				groups = append(groups, g)
			}
			g.members = append(g.members, c)
			g.cents += toCents(c.Value)
			if c.Promotion.ID() < g.key {
				g.key = c.Promotion.ID()
			}
		default:
			groups = append(groups, &exclusiveGroup{
				key:     c.Promotion.ID(),
				members: []StackingCandidate{c},
				cents:   toCents(c.Value),
			})
		}
	}

	var diags []Diagnostic
	if len(groups) > 0 {
		sort.Slice(groups, func(i, j int) bool {
			if groups[i].cents != groups[j].cents {
				return groups[i].cents > groups[j].cents
			}
			return groups[i].key < groups[j].key
		})
		winner := groups[0]
		applied = append(applied, winner.members...)

		if len(groups) > 1 && groups[1].cents == winner.cents {
			conflict := &StackingConflictError{WinnerID: winner.key, Value: float64(winner.cents) / 100}
			for _, g := range groups {
				if g.cents == winner.cents {
					conflict.ContenderID = append(conflict.ContenderID, g.key)
				}
			}
			diags = append(diags, NewDiagnostic(winner.key, conflict))
		}
	}

	sort.SliceStable(applied, func(i, j int) bool { return applied[i].Promotion.ID() < applied[j].Promotion.ID() })
	return applied, diags
}
