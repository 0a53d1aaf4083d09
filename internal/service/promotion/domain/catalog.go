// internal/service/promotion/domain/catalog.go
package domain

import (
	"sort"
	"time"
)

// CompiledAction 是编译后的动作，Err 不为空时该动作在执行阶段被跳过并生成诊断。
type CompiledAction struct {
	Action  Action
	Program ActionProgram
	Err     error
}

// CompiledPromotion 是加载进内存表的促销：条件树和动作都已经编译好。
// Err 为 *MalformedRuleError 时，该促销每一轮都会被排除并上报诊断。
type CompiledPromotion struct {
	Promotion Promotion
	Condition *CompiledCondition
	Actions   []CompiledAction
	Err       error
}

// ID 是促销标识的便捷访问。
func (c *CompiledPromotion) ID() string { return c.Promotion.ID }

// CompilePromotion 编译单个促销，编译失败不会返回错误，而是记录在结果上。
func CompilePromotion(p Promotion, actions *ActionSet) *CompiledPromotion {
	cp := &CompiledPromotion{Promotion: p}

	cond, err := CompileCondition(p.OfferRule.Conditions)
	if err != nil {
		cp.Err = &MalformedRuleError{PromotionID: p.ID, Reason: err.Error()}
	} else if len(p.Actions) == 0 {
		cp.Err = &MalformedRuleError{PromotionID: p.ID, Reason: "promotion declares no actions"}
	}
	cp.Condition = cond

	cp.Actions = make([]CompiledAction, len(p.Actions))
	for i, a := range p.Actions {
		program, err := actions.Compile(p.ID, a)
		cp.Actions[i] = CompiledAction{Action: a, Program: program, Err: err}
	}
	return cp
}

// PromotionTable 是按店铺分组的只读促销表。重新加载时整体替换，不做原地修改。
type PromotionTable struct {
	byShop   map[string][]*CompiledPromotion
	loadedAt time.Time
}

// NewPromotionTable 编译所有促销并按店铺分组，组内按 ID 升序。同一 ID 出现多次时后者覆盖前者。
func NewPromotionTable(promotions []Promotion, actions *ActionSet, loadedAt time.Time) *PromotionTable {
	grouped := make(map[string]map[string]Promotion)
	for _, p := range promotions {
		if grouped[p.ShopID] == nil {
			grouped[p.ShopID] = make(map[string]Promotion)
		}
		grouped[p.ShopID][p.ID] = p
	}

	t := &PromotionTable{byShop: make(map[string][]*CompiledPromotion, len(grouped)), loadedAt: loadedAt}
	for shopID, byID := range grouped {
		list := make([]Promotion, 0, len(byID))
		for _, p := range byID {
			list = append(list, p)
		}
		t.byShop[shopID] = compileShop(list, actions)
	}
	return t
}

func compileShop(promotions []Promotion, actions *ActionSet) []*CompiledPromotion {
	out := make([]*CompiledPromotion, 0, len(promotions))
	for _, p := range promotions {
		out = append(out, CompilePromotion(p, actions))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// WithShop 返回替换了某个店铺促销列表的新表，原表不受影响。
func (t *PromotionTable) WithShop(shopID string, promotions []Promotion, actions *ActionSet) *PromotionTable {
	next := &PromotionTable{byShop: make(map[string][]*CompiledPromotion, len(t.byShop)+1), loadedAt: t.loadedAt}
	for k, v := range t.byShop {
		next.byShop[k] = v
	}
	byID := make(map[string]Promotion, len(promotions))
	for _, p := range promotions {
		byID[p.ID] = p
	}
	list := make([]Promotion, 0, len(byID))
	for _, p := range byID {
		list = append(list, p)
	}
	next.byShop[shopID] = compileShop(list, actions)
	return next
}

// Shop 返回店铺的促销列表，第二个返回值表示该店铺是否已加载。
func (t *PromotionTable) Shop(shopID string) ([]*CompiledPromotion, bool) {
	if t == nil {
		return nil, false
	}
	list, ok := t.byShop[shopID]
	return list, ok
}

// Shops 返回已加载的店铺 ID，按字典序。
func (t *PromotionTable) Shops() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.byShop))
	for id := range t.byShop {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Size 返回表中促销总数。
func (t *PromotionTable) Size() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, list := range t.byShop {
		n += len(list)
	}
	return n
}

// LoadedAt 返回表的加载时间。
func (t *PromotionTable) LoadedAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.loadedAt
}
