// internal/service/promotion/domain/event.go
package domain

// EventTypeTriggerAction 是 offerRule 未声明事件类型时使用的默认类型。
const EventTypeTriggerAction = "triggerAction"

// ParamPromotionID 是事件参数里关联促销的键，总是存在。
const ParamPromotionID = "promotionId"

// TriggerEvent 是条件成立时发出的事件，下游通过 params.promotionId 关联到促销。
type TriggerEvent struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// newTriggerEvent 按 offerRule.event 构造事件，params 是拷贝，promotionId 以促销自身 ID 为准。
func newTriggerEvent(p *Promotion) TriggerEvent {
	def := p.OfferRule.Event
	params := make(map[string]any, len(def.Params)+1)
	for k, v := range def.Params {
		params[k] = v
	}
	params[ParamPromotionID] = p.ID

	eventType := def.Type
	if eventType == "" {
		eventType = EventTypeTriggerAction
	}
	return TriggerEvent{Type: eventType, Params: params}
}
