package domain

// ErrorKind 订单失败分类
type ErrorKind string

const (
	// ErrorKindBlockedByMitigation 请求被反爬拦截（人机验证页）
	ErrorKindBlockedByMitigation ErrorKind = "blocked_by_mitigation"
	// ErrorKindMissingOrderID 响应成功但未返回订单 ID
	ErrorKindMissingOrderID ErrorKind = "missing_order_id"
	// ErrorKindAPIError 交易所返回业务错误
	ErrorKindAPIError ErrorKind = "api_error"
	// ErrorKindSigningFailure 签名服务失败
	ErrorKindSigningFailure ErrorKind = "signing_failure"
	// ErrorKindInputRejected 输入校验不通过
	ErrorKindInputRejected ErrorKind = "input_rejected"
)

// OrderEvaluation 订单响应判读结果
// 由响应体解析得出，不携带传输层状态时 HTTPStatus 为 0，
// 调用方可用实际传输状态回填
type OrderEvaluation struct {
	// 是否成功拿到订单 ID
	Success bool
	// 交易所订单 ID
	OrderID string
	// HTTP 状态码
	HTTPStatus int
	// 失败分类
	ErrorKind ErrorKind
	// 失败描述
	ErrorMessage string
	// Cloudflare Ray ID，命中拦截时提取
	RayID string
	// 原始响应体片段，用于审计
	Raw string
}
