// internal/scrape/path.go
package scrape

import (
	"errors"
	"fmt"
	"strings"

	"sailscrape/internal/model"
)

// ErrInvalidUnit 는 landing 경로를 안전하게 만들 수 없는 WorkUnit.
var ErrInvalidUnit = errors.New("invalid work unit")

// ValidateUnit
// ------------------------------------------------------------
// landing 경로는 {sailCode}/{action}/{currency}/{fareCode} 이므로
// 각 segment 가 비어 있거나 "/" 를 포함하면 다른 unit 의 경로와
// 겹칠 수 있다. 요청을 하나도 보내기 전에 거부한다.
func ValidateUnit(u model.WorkUnit) error {
	if !u.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidUnit, u.Action)
	}
	segments := map[string]string{
		"sail code": string(u.SailCode),
		"currency":  u.Currency,
		"fare code": string(u.FareCode),
	}
	for name, v := range segments {
		if v == "" {
			return fmt.Errorf("%w: empty %s", ErrInvalidUnit, name)
		}
		if strings.ContainsAny(v, "/\\") || v == "." || v == ".." {
			return fmt.Errorf("%w: %s %q is not a path segment", ErrInvalidUnit, name, v)
		}
	}
	return nil
}

// LandingPath 는 WorkUnit 의 결정적 landing 경로.
//
//	SD2501/prices-v2/US/Essential
func LandingPath(u model.WorkUnit) string {
	return fmt.Sprintf("%s/%s/%s/%s", u.SailCode, u.Action, u.Currency, u.FareCode)
}
