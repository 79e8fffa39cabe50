// internal/scrape/combinations.go
package scrape

import "sailscrape/internal/model"

// MaxOccupants 는 price 요청에 쓰는 (성인+아동) 상한.
// 현재 catalog 10개는 모두 이 조건을 만족한다.
const MaxOccupants = 4

// 고정 occupancy catalog. 순서도 고정이다.
var occupancyCatalog = [...]model.Occupancy{
	{Adults: 1, Kids: 0},
	{Adults: 1, Kids: 1},
	{Adults: 1, Kids: 2},
	{Adults: 1, Kids: 3},
	{Adults: 2, Kids: 0},
	{Adults: 2, Kids: 1},
	{Adults: 2, Kids: 2},
	{Adults: 3, Kids: 0},
	{Adults: 3, Kids: 1},
	{Adults: 4, Kids: 0},
}

// AvailabilityOccupancy 는 availability 요청에 고정으로 쓰는 인원 (1, 0).
var AvailabilityOccupancy = model.Occupancy{Adults: 1, Kids: 0}

// Combinations 는 고정 catalog 의 복사본을 반환한다.
func Combinations() []model.Occupancy {
	out := make([]model.Occupancy, len(occupancyCatalog))
	copy(out, occupancyCatalog[:])
	return out
}

// PriceOccupancies 는 price 요청 대상 조합 (Total ≤ MaxOccupants).
func PriceOccupancies() []model.Occupancy {
	out := make([]model.Occupancy, 0, len(occupancyCatalog))
	for _, o := range occupancyCatalog {
		if o.Total() <= MaxOccupants {
			out = append(out, o)
		}
	}
	return out
}
