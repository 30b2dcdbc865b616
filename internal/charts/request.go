package charts

import (
	"encoding/json"
	"fmt"
	"strconv"

	"tabviz/internal/dataset"
)

// Request is a raw chart request as received from a client
type Request struct {
	Kind        string `json:"kind"`
	XColumn     string `json:"x_column,omitempty"`
	YColumn     string `json:"y_column,omitempty"`
	Aggregation string `json:"aggregation,omitempty"`
	GroupColumn string `json:"group_column,omitempty"`
	XBucket     string `json:"x_bucket,omitempty"`
	GroupBucket string `json:"group_bucket,omitempty"`
	GroupValues []any  `json:"group_values,omitempty"`
}

// CacheKey returns a stable serialization used to key rendered output
func (r Request) CacheKey() []byte {
	b, _ := json.Marshal(r)
	return b
}

// selectionLabels turns the raw selection into labels comparable with
// dataset.Column.Label
func selectionLabels(values []any) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		var l string
		switch x := v.(type) {
		case string:
			l = x
		case float64:
			l = dataset.FormatNumber(x)
		case float32:
			l = dataset.FormatNumber(float64(x))
		case int:
			l = strconv.Itoa(x)
		case int64:
			l = strconv.FormatInt(x, 10)
		case json.Number:
			l = x.String()
			if f, err := x.Float64(); err == nil {
				l = dataset.FormatNumber(f)
			}
		case bool:
			l = strconv.FormatBool(x)
		case nil:
			continue
		default:
			return nil, fmt.Errorf("unsupported selection value %v", v)
		}
		out[l] = struct{}{}
	}
	return out, nil
}
