package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// 响应体保留到审计字段的最大长度
const rawSnapshotLimit = 2000

var (
	htmlMarkers = []string{"<html", "<!doctype", "<head", "<body"}

	mitigationMarkers = []string{
		"just a moment",
		"attention required",
		"cloudflare",
		"challenge-platform",
		"cf-browser-verification",
		"captcha",
	}

	rayIDPattern = regexp.MustCompile(`(?i)ray\s*id:?\s*(?:<[^>]*>\s*)?([0-9a-f]{8,})`)

	// 可能携带错误描述的字段名
	errorMessageKeys = []string{"error", "errors", "errorMsg", "errMsg", "reason", "detail", "message"}

	// 可能携带 HTTP 状态码的字段名
	statusKeys = []string{"status", "statusCode", "status_code", "code"}

	// 可能携带订单 ID 的字段名
	orderIDKeys = []string{"orderID", "orderId", "order_id", "id"}

	// 可能包裹实际载荷的字段名
	wrapperKeys = []string{"data", "order", "result", "payload"}
)

// EvaluateOrderResponse 判读下单响应
//
// 判读顺序固定：先识别 HTML/反爬拦截页（包括嵌在 JSON 错误字段里的），
// 再看显式 status 字段，然后解析错误描述，最后提取订单 ID。
// 顺序不能颠倒，拦截页常伪装成 JSON 错误返回，先按 JSON 判读会得出
// 误导性的错误分类
func EvaluateOrderResponse(raw []byte) *OrderEvaluation {
	body := strings.TrimSpace(string(raw))
	ev := &OrderEvaluation{Raw: truncate(body, rawSnapshotLimit)}

	if body == "" {
		ev.ErrorKind = ErrorKindAPIError
		ev.ErrorMessage = "empty response body"
		return ev
	}

	if looksLikeMitigation(body) {
		return mitigationEvaluation(ev, body)
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		ev.ErrorKind = ErrorKindAPIError
		ev.ErrorMessage = truncate("unparseable response: "+body, 500)
		return ev
	}

	obj, isObject := parsed.(map[string]interface{})
	if isObject {
		// 拦截页可能整个塞进某个字符串字段
		for _, v := range collectStrings(obj, 0) {
			if looksLikeMitigation(v) {
				return mitigationEvaluation(ev, v)
			}
		}
	}

	if isObject {
		if status, ok := statusField(obj); ok {
			ev.HTTPStatus = status
			if status < 200 || status > 299 {
				ev.ErrorKind = ErrorKindAPIError
				ev.ErrorMessage = firstErrorMessage(obj, 0)
				if ev.ErrorMessage == "" {
					ev.ErrorMessage = fmt.Sprintf("exchange returned status %d", status)
				}
				return ev
			}
		}
	}

	if !isObject {
		ev.ErrorKind = ErrorKindAPIError
		ev.ErrorMessage = truncate("unexpected response shape: "+body, 500)
		return ev
	}

	// success 标记为真时不再把 message 类字段当错误描述
	succeeded, _ := obj["success"].(bool)
	if !succeeded {
		if msg := firstErrorMessage(obj, 0); msg != "" {
			ev.ErrorKind = ErrorKindAPIError
			ev.ErrorMessage = msg
			return ev
		}
	}

	if orderID := extractOrderID(obj, 0); orderID != "" {
		ev.Success = true
		ev.OrderID = orderID
		return ev
	}

	ev.ErrorKind = ErrorKindMissingOrderID
	ev.ErrorMessage = "response contained no order id"
	return ev
}

func mitigationEvaluation(ev *OrderEvaluation, content string) *OrderEvaluation {
	ev.ErrorKind = ErrorKindBlockedByMitigation
	ev.ErrorMessage = "request blocked by anti-bot mitigation"
	if m := rayIDPattern.FindStringSubmatch(content); m != nil {
		ev.RayID = m[1]
	}
	return ev
}

// looksLikeMitigation 判断内容是否为 HTML 页或人机验证页
func looksLikeMitigation(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range htmlMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, marker := range mitigationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// collectStrings 收集对象中所有字符串值，最多下探两层
func collectStrings(obj map[string]interface{}, depth int) []string {
	if depth > 2 {
		return nil
	}
	var out []string
	for _, v := range obj {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case map[string]interface{}:
			out = append(out, collectStrings(t, depth+1)...)
		}
	}
	return out
}

// firstErrorMessage 按字段优先级查找非空错误描述，最多下探两层
func firstErrorMessage(obj map[string]interface{}, depth int) string {
	if depth > 2 {
		return ""
	}
	for _, key := range errorMessageKeys {
		if v, ok := obj[key]; ok {
			if msg := messageFromValue(v, depth); msg != "" {
				return msg
			}
		}
	}
	for _, key := range wrapperKeys {
		if nested, ok := obj[key].(map[string]interface{}); ok {
			if msg := firstErrorMessage(nested, depth+1); msg != "" {
				return msg
			}
		}
	}
	return ""
}

// messageFromValue 从字符串、子对象或子错误数组中提取描述
func messageFromValue(v interface{}, depth int) string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) != "" {
			return truncate(t, 500)
		}
	case map[string]interface{}:
		return firstErrorMessage(t, depth+1)
	case []interface{}:
		for _, item := range t {
			if msg := messageFromValue(item, depth+1); msg != "" {
				return msg
			}
		}
	}
	return ""
}

// extractOrderID 在对象及其常见包裹字段中查找订单 ID
func extractOrderID(obj map[string]interface{}, depth int) string {
	if depth > 2 {
		return ""
	}
	for _, key := range orderIDKeys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	for _, key := range wrapperKeys {
		if nested, ok := obj[key].(map[string]interface{}); ok {
			if id := extractOrderID(nested, depth+1); id != "" {
				return id
			}
		}
	}
	return ""
}

// statusField 按字段优先级查找数值型状态码
func statusField(obj map[string]interface{}) (int, bool) {
	for _, key := range statusKeys {
		switch v := obj[key].(type) {
		case float64:
			return int(v), true
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n), true
			}
		}
	}
	return 0, false
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
