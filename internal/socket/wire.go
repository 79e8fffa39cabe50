// internal/socket/wire.go
package socket

import (
	"sailscrape/internal/model"

	json "github.com/goccy/go-json"
)

// wireMessage 는 backend 가 기대하는 요청 JSON 포맷.
//
//	{"country":"US","action":"prices-v2","data":{...},"requestId":"<uuid>"}
type wireMessage struct {
	Country   string   `json:"country"`
	Action    string   `json:"action"`
	Data      wireData `json:"data"`
	RequestID string   `json:"requestId"`
}

type wireData struct {
	CruiseCode           string          `json:"cruiseCode"`
	Occupancy            model.Occupancy `json:"occupancy"`
	FareCode             string          `json:"fareCode"`
	SuiteCategory        string          `json:"suiteCategory"`
	PreferredSuiteNumber *string         `json:"preferredSuiteNumber"`
	VSMember             bool            `json:"vsMember"`
	Availabilities       []string        `json:"availabilities"`
	Air                  wireAir         `json:"air"`
}

type wireAir struct {
	Type string `json:"type"`
}

// 고정 필드. 모든 요청에 동일하게 들어간다.
var availabilityKinds = []string{"standard", "guaranteed", "partial"}

// noCategory 는 category 가 없는 요청의 suiteCategory 값.
// backend 는 지금까지 null 이 아니라 문자열 "None" 만 받아 왔다.
const noCategory = "None"

// EncodeEnvelope 는 RequestEnvelope 를 wire JSON 으로 직렬화한다.
// price 요청(Category 빈 값)은 suiteCategory 를 "None" 으로 보낸다.
func EncodeEnvelope(env model.RequestEnvelope) ([]byte, error) {
	category := noCategory
	if env.Category != "" {
		category = string(env.Category)
	}

	return json.Marshal(wireMessage{
		Country: env.Currency,
		Action:  string(env.Action),
		Data: wireData{
			CruiseCode:     string(env.SailCode),
			Occupancy:      env.Occupancy,
			FareCode:       string(env.FareCode),
			SuiteCategory:  category,
			Availabilities: availabilityKinds,
			Air:            wireAir{Type: "notAvailable"},
		},
		RequestID: env.ID,
	})
}
