// internal/scrape/classify.go
package scrape

import (
	"bytes"
	"errors"
	"fmt"

	"sailscrape/internal/model"

	json "github.com/goccy/go-json"
)

var (
	// ErrBadRequest 는 backend 가 요청 형식 오류를 알려온 경우.
	// 현재 WorkUnit 전체를 중단시킨다.
	ErrBadRequest = errors.New("upstream bad request")

	// ErrMalformedResponse 는 응답이 JSON 이 아닌 경우.
	ErrMalformedResponse = errors.New("malformed response")
)

// backend 는 "데이터 없음" 과 "에러" 를 status code 가 아니라
// payload 안의 태그 문자열로 구분한다. 그래서 내용을 직접 본다.
var (
	markerPricesError = []byte(`"PricesErrorResponseV2"`)
	markerBadRequest  = []byte(`"BadRequestResponse"`)
)

// Verdict 는 응답 분류 결과.
type Verdict int

const (
	Keep Verdict = iota
	Suppressed
	Failed
)

func (v Verdict) String() string {
	switch v {
	case Keep:
		return "keep"
	case Suppressed:
		return "suppressed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Classified 는 Keep(Payload) | Suppressed(Reason) | Failed(Err) 중 하나.
type Classified struct {
	Verdict Verdict
	Payload []byte
	Reason  string
	Err     error
}

// Classify
// ------------------------------------------------------------
// 응답 하나를 분류한다. 판단 순서:
//
//  0. JSON 이 아니면 Failed (ErrMalformedResponse)
//  1. "PricesErrorResponseV2" → Suppressed (이 sail code 에 해당 fare code 없음)
//  2. "BadRequestResponse"    → Failed (ErrBadRequest)
//  3. availability 이고 suites 결과가 비어 있음 → Suppressed
//  4. 그 외 → Keep (raw 그대로)
func Classify(action model.Action, raw []byte) Classified {
	if !json.Valid(raw) {
		return Classified{
			Verdict: Failed,
			Err:     fmt.Errorf("%w: %s", ErrMalformedResponse, snippet(raw)),
		}
	}

	if bytes.Contains(raw, markerPricesError) {
		return Classified{Verdict: Suppressed, Reason: "fare code not offered for sail code"}
	}

	if bytes.Contains(raw, markerBadRequest) {
		return Classified{
			Verdict: Failed,
			Err:     fmt.Errorf("%w: %s", ErrBadRequest, snippet(raw)),
		}
	}

	if action == model.ActionAvailability && suitesEmpty(raw) {
		return Classified{Verdict: Suppressed, Reason: "no suites available"}
	}

	return Classified{Verdict: Keep, Payload: raw}
}

// suitesEmpty 는 최상위 또는 data 아래의 "suites" 가 존재하면서 비어 있는지 본다.
// 키 자체가 없으면 비어 있다고 보지 않는다.
func suitesEmpty(raw []byte) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return false
	}
	if v, ok := top["suites"]; ok {
		return emptyValue(v)
	}

	data, ok := top["data"]
	if !ok {
		return false
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(data, &inner); err != nil {
		return false
	}
	if v, ok := inner["suites"]; ok {
		return emptyValue(v)
	}
	return false
}

func emptyValue(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	switch string(v) {
	case "", "null", `""`, "false", "0":
		return true
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(v, &arr); err == nil {
		return len(arr) == 0
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(v, &obj); err == nil {
		return len(obj) == 0
	}
	return false
}

// snippet 은 에러 메시지에 넣을 응답 앞부분.
func snippet(raw []byte) string {
	const max = 256
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
