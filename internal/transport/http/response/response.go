package response

// Resp 统一响应体：code 与 HTTP 状态一致（成功为 0）
type Resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// Page 列表类接口的 data
type Page[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

// NewPage items 为 nil 时输出 []，不输出 null
func NewPage[T any](items []T, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Total: total, Items: items}
}

// New data 为 nil 时输出 {}
func New(code int, msg string, data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(data interface{}) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error 失败响应；customMsg 为空时用 code 的默认文案
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, nil)
}
