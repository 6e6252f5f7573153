package rowstream

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ParamBinder translates one positionally-named value into a Parameter
//
// supplied by the caller at NewWriter - parameter type/schema mapping is the
// caller's concern, not this layer's
type ParamBinder func(name string, value any) (Parameter, error)

// BindValue is a ParamBinder that normalizes numeric values to decimal.Decimal
// before binding
//
// float32/float64 and json.Number values are converted; everything else is bound as-is
func BindValue(name string, value any) (Parameter, error) {
	switch v := value.(type) {
	case float32:
		return Parameter{Name: name, Value: decimal.NewFromFloat(float64(v))}, nil
	case float64:
		return Parameter{Name: name, Value: decimal.NewFromFloat(v)}, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return Parameter{}, err
		}
		return Parameter{Name: name, Value: d}, nil
	default:
		return Parameter{Name: name, Value: value}, nil
	}
}
