// internal/service/promotion/domain/matcher.go
package domain

import (
	"sort"
	"time"
)

// MatchTriggers 挑出响应 triggerKey、已启用且 now 在有效期内的促销，结果按 ID 升序。
// 后续的叠加裁决依赖这个顺序来保证确定性。
func MatchTriggers(triggerKey string, promotions []*CompiledPromotion, now time.Time) []*CompiledPromotion {
	candidates := make([]*CompiledPromotion, 0, len(promotions))
	for _, cp := range promotions {
		p := &cp.Promotion
		if !p.Enabled || !p.IsActiveAt(now) || !p.RespondsTo(triggerKey) {
			continue
		}
		candidates = append(candidates, cp)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].ID() < candidates[j].ID() })
	return candidates
}
