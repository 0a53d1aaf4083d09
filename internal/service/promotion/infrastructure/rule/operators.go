package rule

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"nexus-promotion/internal/service/promotion/domain"
)

// operatorFunc 比较事实值与条件中的比较值。返回 error 表示类型不符，条件按不成立处理。
type operatorFunc func(actual gjson.Result, expected any) (bool, error)

func operatorFuncs() map[domain.Operator]operatorFunc {
	return map[domain.Operator]operatorFunc{
		domain.OpEqual:                equal,
		domain.OpNotEqual:             negate(equal),
		domain.OpLessThan:             numeric(func(a, b float64) bool { return a < b }),
		domain.OpLessThanInclusive:    numeric(func(a, b float64) bool { return a <= b }),
		domain.OpGreaterThan:          numeric(func(a, b float64) bool { return a > b }),
		domain.OpGreaterThanInclusive: numeric(func(a, b float64) bool { return a >= b }),
		domain.OpIn:                   in,
		domain.OpNotIn:                negate(in),
		domain.OpContains:             contains,
		domain.OpDoesNotContain:       negate(contains),
	}
}

func equal(actual gjson.Result, expected any) (bool, error) {
	return valuesEqual(domain.NormalizeValue(actual.Value()), expected), nil
}

func in(actual gjson.Result, expected any) (bool, error) {
	list, ok := expected.([]any)
	if !ok {
		return false, fmt.Errorf("expected a list, got %T", expected)
	}
	v := domain.NormalizeValue(actual.Value())
	for _, item := range list {
		if valuesEqual(v, item) {
			return true, nil
		}
	}
	return false, nil
}

func contains(actual gjson.Result, expected any) (bool, error) {
	if !actual.IsArray() {
		return false, fmt.Errorf("fact value is not a list")
	}
	for _, item := range actual.Array() {
		if valuesEqual(domain.NormalizeValue(item.Value()), expected) {
			return true, nil
		}
	}
	return false, nil
}

func negate(fn operatorFunc) operatorFunc {
	return func(actual gjson.Result, expected any) (bool, error) {
		ok, err := fn(actual, expected)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

func numeric(cmp func(a, b float64) bool) operatorFunc {
	return func(actual gjson.Result, expected any) (bool, error) {
		a, ok := toNumber(actual)
		if !ok {
			return false, fmt.Errorf("fact value %s is not numeric", actual.Raw)
		}
		b, ok := expected.(float64)
		if !ok {
			return false, fmt.Errorf("comparison value %v is not numeric", expected)
		}
		return cmp(a, b), nil
	}
}

// toNumber 只接受 JSON 数字和能解析成数字的字符串。
func toNumber(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}
