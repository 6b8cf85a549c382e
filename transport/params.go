package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// EncodeParams flattens params into query values, omitting keys whose value
// is nil, an empty string, numeric zero or a zero time.
func EncodeParams(params map[string]any) url.Values {
	values := url.Values{}
	for k, v := range params {
		if s, ok := paramString(v); ok {
			values.Set(k, s)
		}
	}
	return values
}

func paramString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case *string:
		if x == nil || *x == "" {
			return "", false
		}
		return *x, true
	case int:
		return strconv.Itoa(x), x != 0
	case *int:
		if x == nil || *x == 0 {
			return "", false
		}
		return strconv.Itoa(*x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), x != 0
	case int64:
		return strconv.FormatInt(x, 10), x != 0
	case uint:
		return strconv.FormatUint(uint64(x), 10), x != 0
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), x != 0
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), x != 0
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.Format(time.RFC3339), !x.IsZero()
	case fmt.Stringer:
		s := x.String()
		return s, s != ""
	}
	s := fmt.Sprint(v)
	return s, s != ""
}
