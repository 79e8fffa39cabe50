// internal/model/sailing.go
package model

// SailCode
// ------------------------------------------------------------
// 하나의 항해(sailing) 인스턴스를 식별하는 코드. 예: "SD2501"
// catalog 에서 한 번 받아온 뒤로는 변하지 않는다.
type SailCode string

// ShipCode 는 sail code 앞 2글자에서 결정적으로 유도되는 선박 코드.
type ShipCode string

// FareCode 는 가격 등급 식별자 (예: "Essential").
type FareCode string

// CabinCategory 는 선박별 객실 분류 코드. reference table 에서 ShipCode 로 조인된다.
type CabinCategory string

// ShipCode 는 SailCode 의 앞 2글자를 반환한다.
// 2글자 미만이면 전체 문자열을 그대로 ShipCode 로 취급한다.
func (s SailCode) ShipCode() ShipCode {
	if len(s) < 2 {
		return ShipCode(s)
	}
	return ShipCode(s[:2])
}

// CatalogEntry
// ------------------------------------------------------------
// catalog(search index) 의 hit 하나를 축약한 구조체.
// 하나의 SailCode 가 여러 FareCode 와 연결된다 (many-to-many).
type CatalogEntry struct {
	SailCode  SailCode   `json:"cruiseCode"`
	FareCodes []FareCode `json:"fareCodes"`
}

// CategoryRow 는 reference table 의 (ship_code, cabin_category) 한 행.
type CategoryRow struct {
	ShipCode ShipCode
	Category CabinCategory
}
