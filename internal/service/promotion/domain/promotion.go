// internal/service/promotion/domain/promotion.go
package domain

import (
	"strconv"
	"strings"
	"time"
)

// StackAbility 决定一个促销能否与其他促销叠加。
// 除了 none 与 all 之外的任何取值都被视为一个“受限叠加类”的名称。
type StackAbility string

const (
	StackNone StackAbility = "none" // 互斥：只能与 all 类促销共存
	StackAll  StackAbility = "all"  // 总是可以叠加
)

// IsRestricted 判断是否为受限叠加类（同类之间可叠加，跨类互斥）。
func (s StackAbility) IsRestricted() bool {
	return s != StackNone && s != StackAll && s != ""
}

// Trigger 声明促销响应的触发器，例如 "offers"。
type Trigger struct {
	TriggerKey        string         `json:"triggerKey" yaml:"triggerKey"`
	TriggerParameters map[string]any `json:"triggerParameters,omitempty" yaml:"triggerParameters,omitempty"`
}

// EventDefinition 是 offerRule 条件成立时要发出的事件定义。
type EventDefinition struct {
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// OfferRule 是促销的条件树加上条件成立时发出的事件。
type OfferRule struct {
	Name       string          `json:"name" yaml:"name"`
	Conditions *Condition      `json:"conditions" yaml:"conditions"`
	Event      EventDefinition `json:"event" yaml:"event"`
}

// Action 是促销命中后要执行的动作，actionKey 决定由哪个动作实现处理。
type Action struct {
	ActionKey        ActionKey      `json:"actionKey" yaml:"actionKey"`
	ActionParameters map[string]any `json:"actionParameters,omitempty" yaml:"actionParameters,omitempty"`
}

// Promotion 是一个店铺的促销定义。
// 它由管理端创建和更新，对引擎而言是只读的。
type Promotion struct {
	ID              string       `json:"_id" yaml:"_id"`
	ShopID          string       `json:"shopId" yaml:"shopId"`
	Label           string       `json:"label" yaml:"label"`
	Description     string       `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled         bool         `json:"enabled" yaml:"enabled"`
	Triggers        []Trigger    `json:"triggers" yaml:"triggers"`
	OfferRule       OfferRule    `json:"offerRule" yaml:"offerRule"`
	Actions         []Action     `json:"actions" yaml:"actions"`
	StartDate       time.Time    `json:"startDate" yaml:"startDate"`
	EndDate         *time.Time   `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	StackAbility    StackAbility `json:"stackAbility" yaml:"stackAbility"`
	ReportAsTaxable bool         `json:"reportAsTaxable" yaml:"reportAsTaxable"`
}

// IsActiveAt 判断 now 是否落在 [startDate, endDate) 区间内，endDate 为空表示不设上限。
func (p *Promotion) IsActiveAt(now time.Time) bool {
	if now.Before(p.StartDate) {
		return false
	}
	if p.EndDate != nil && !now.Before(*p.EndDate) {
		return false
	}
	return true
}

// RespondsTo 判断促销是否声明了该触发器。
func (p *Promotion) RespondsTo(triggerKey string) bool {
	for _, t := range p.Triggers {
		if t.TriggerKey == triggerKey {
			return true
		}
	}
	return false
}

// Validate 做结构层面的校验，条件树本身的合法性由 CompileCondition 负责。
func (p *Promotion) Validate() error {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, "_id is required")
	}
	if strings.TrimSpace(p.ShopID) == "" {
		problems = append(problems, "shopId is required")
	}
	if strings.TrimSpace(p.Label) == "" {
		problems = append(problems, "label is required")
	}
	if len(p.Triggers) == 0 {
		problems = append(problems, "at least one trigger is required")
	}
	for i, t := range p.Triggers {
		if strings.TrimSpace(t.TriggerKey) == "" {
			problems = append(problems, "triggers["+strconv.Itoa(i)+"].triggerKey is required")
		}
	}
	if p.OfferRule.Conditions == nil {
		problems = append(problems, "offerRule.conditions is required")
	}
	if len(p.Actions) == 0 {
		problems = append(problems, "at least one action is required")
	}
	if p.StartDate.IsZero() {
		problems = append(problems, "startDate is required")
	}
	if p.EndDate != nil && !p.EndDate.After(p.StartDate) {
		problems = append(problems, "endDate must be after startDate")
	}
	if p.StackAbility == "" {
		problems = append(problems, "stackAbility is required")
	}
	if len(problems) > 0 {
		return &ValidationError{PromotionID: p.ID, Problems: problems}
	}
	return nil
}
