package request

import (
	"fmt"
	"net/http"
	"strconv"
)

// IntParam reads a positive integer query parameter. A missing parameter
// yields def; values above upper are capped.
func IntParam(r *http.Request, name string, def, upper int) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	if upper > 0 && n > upper {
		n = upper
	}
	return n, nil
}
