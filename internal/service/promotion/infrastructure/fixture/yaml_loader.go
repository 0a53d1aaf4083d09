// internal/service/promotion/infrastructure/fixture/yaml_loader.go
package fixture

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"nexus-promotion/internal/service/promotion/domain"
)

// File 是 fixture 文件的结构：
//
//	promotions:
//	  - _id: orderPromotion
//	    ...
type File struct {
	Promotions []domain.Promotion `yaml:"promotions"`
}

// LoadFile 读取 fixture 文件
func LoadFile(path string) ([]domain.Promotion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open fixtures %s", path)
	}
	defer f.Close()
	return Decode(f)
}

// Decode 解析 fixture 文档，未知字段视为错误，避免拼错的字段被静默忽略。
func Decode(r io.Reader) ([]domain.Promotion, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decode fixtures")
	}
	for i := range file.Promotions {
		normalizeConditions(file.Promotions[i].OfferRule.Conditions)
		for j := range file.Promotions[i].Actions {
			a := &file.Promotions[i].Actions[j]
			if a.ActionParameters != nil {
				a.ActionParameters = domain.NormalizeValue(a.ActionParameters).(map[string]any)
			}
		}
	}
	return file.Promotions, nil
}

// normalizeConditions 把 YAML 解析出的 int 等类型统一成 JSON 的表示。
func normalizeConditions(c *domain.Condition) {
	if c == nil {
		return
	}
	c.Value = domain.NormalizeValue(c.Value)
	for _, child := range c.All {
		normalizeConditions(child)
	}
	for _, child := range c.Any {
		normalizeConditions(child)
	}
}
