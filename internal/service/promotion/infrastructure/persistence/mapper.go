package persistence

import (
	"encoding/json"

	"github.com/pkg/errors"

	"nexus-promotion/internal/service/promotion/domain"
)

// ToDomainPromotion 将数据库模型转换为领域模型
func ToDomainPromotion(model *PromotionModel) (*domain.Promotion, error) {
	if model == nil {
		return nil, nil
	}
	p := &domain.Promotion{
		ID:              model.ID,
		ShopID:          model.ShopID,
		Label:           model.Label,
		Description:     model.Description,
		Enabled:         model.Enabled,
		StartDate:       model.StartDate,
		EndDate:         model.EndDate,
		StackAbility:    domain.StackAbility(model.StackAbility),
		ReportAsTaxable: model.ReportAsTaxable,
	}
	if err := decodeColumn(model.Triggers, &p.Triggers); err != nil {
		return nil, errors.Wrapf(err, "promotion %s: triggers", model.ID)
	}
	if err := decodeColumn(model.OfferRule, &p.OfferRule); err != nil {
		return nil, errors.Wrapf(err, "promotion %s: offer_rule", model.ID)
	}
	if err := decodeColumn(model.Actions, &p.Actions); err != nil {
		return nil, errors.Wrapf(err, "promotion %s: actions", model.ID)
	}
	return p, nil
}

// FromDomainPromotion 将领域模型转换为数据库模型，用于 upsert
func FromDomainPromotion(p *domain.Promotion) (*PromotionModel, error) {
	if p == nil {
		return nil, nil
	}
	triggers, err := json.Marshal(p.Triggers)
	if err != nil {
		return nil, errors.Wrap(err, "marshal triggers")
	}
	rule, err := json.Marshal(p.OfferRule)
	if err != nil {
		return nil, errors.Wrap(err, "marshal offer rule")
	}
	actions, err := json.Marshal(p.Actions)
	if err != nil {
		return nil, errors.Wrap(err, "marshal actions")
	}
	return &PromotionModel{
		ID:              p.ID,
		ShopID:          p.ShopID,
		Label:           p.Label,
		Description:     p.Description,
		Enabled:         p.Enabled,
		Triggers:        string(triggers),
		OfferRule:       string(rule),
		Actions:         string(actions),
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		StackAbility:    string(p.StackAbility),
		ReportAsTaxable: p.ReportAsTaxable,
	}, nil
}

// ToDomainShop 将数据库模型转换为领域模型
func ToDomainShop(model *ShopModel) *domain.Shop {
	if model == nil {
		return nil
	}
	return &domain.Shop{ID: model.ID, Name: model.Name, ShopType: model.ShopType}
}

func decodeColumn(raw string, out any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}
