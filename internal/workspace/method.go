package workspace

import (
	"fmt"
	"net/http"
	"strings"
)

// Method is one of the HTTP methods the control-plane API is called with.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
	MethodPut  Method = http.MethodPut
)

// ParseMethod resolves a method name, ignoring case.
func ParseMethod(name string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case http.MethodGet:
		return MethodGet, nil
	case http.MethodPost:
		return MethodPost, nil
	case http.MethodPut:
		return MethodPut, nil
	default:
		return "", fmt.Errorf("unsupported method %q", name)
	}
}

func (m Method) valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut:
		return true
	}
	return false
}
