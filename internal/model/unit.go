// internal/model/unit.go
package model

import "fmt"

// Action 은 backend 에 보내는 요청 종류.
type Action string

const (
	ActionPrices       Action = "prices-v2"
	ActionAvailability Action = "available-suites"
)

// Valid 는 지원하는 action 인지 확인한다.
func (a Action) Valid() bool {
	return a == ActionPrices || a == ActionAvailability
}

// Occupancy 는 (성인, 아동) 인원 조합.
type Occupancy struct {
	Adults int `json:"adults"`
	Kids   int `json:"kids"`
}

// Total 은 총 인원 수.
func (o Occupancy) Total() int { return o.Adults + o.Kids }

func (o Occupancy) String() string {
	return fmt.Sprintf("%da%dk", o.Adults, o.Kids)
}

// WorkUnit
// ------------------------------------------------------------
// Scrape Driver 가 한 번 반복할 때 만들어지는 작업 단위.
//   - action × sail code × fare code × currency
//   - availability 인 경우 Categories 전체를 한 번에 fan-out 한다
//
// Fan-Out Executor 호출 한 번 안에서 소비되고 저장되지 않는다.
type WorkUnit struct {
	Action     Action
	SailCode   SailCode
	FareCode   FareCode
	Currency   string
	Categories []CabinCategory
}

// RequestEnvelope
// ------------------------------------------------------------
// 실제 전송되는 요청 하나. ID 는 요청마다 새로 생성하지만
// backend 가 신뢰성 있게 echo 하지 않으므로 응답 매칭에는 쓰지 않는다.
// (매칭은 socket.Correlator 의 직렬화로 보장)
type RequestEnvelope struct {
	ID        string
	Action    Action
	SailCode  SailCode
	FareCode  FareCode
	Currency  string
	Occupancy Occupancy
	Category  CabinCategory // price 요청이면 빈 값
}
