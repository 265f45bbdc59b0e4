package domain

import (
	"errors"
	"fmt"
)

// Kind 错误分类，HTTP 层根据它决定状态码和对外文案
type Kind string

const (
	KindValidation   Kind = "ValidationError"   // 请求参数问题，直接拒绝
	KindCrossMarket  Kind = "CrossMarketError"  // 撮合输入混入了别的市场，属于编程错误
	KindDecode       Kind = "AdapterDecodeError" // 单条链上记录解码失败，局部恢复
	KindVerification Kind = "VerificationError" // MPC 验证失败，不再进入结算
	KindSettlement   Kind = "SettlementError"   // 链上拒绝结算批次，不重试
	KindCleanup      Kind = "CleanupError"      // 单笔订单关闭失败，只计数
)

// Error 统一的领域错误，带分类和底层原因
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func NewValidation(msg string) *Error            { return newError(KindValidation, msg, nil) }
func NewCrossMarket(msg string) *Error           { return newError(KindCrossMarket, msg, nil) }
func NewDecode(msg string, cause error) *Error   { return newError(KindDecode, msg, cause) }
func NewVerification(msg string, cause error) *Error {
	return newError(KindVerification, msg, cause)
}
func NewSettlement(msg string, cause error) *Error { return newError(KindSettlement, msg, cause) }
func NewCleanup(msg string, cause error) *Error    { return newError(KindCleanup, msg, cause) }

// KindOf 取出错误分类，非领域错误按内部错误处理
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind 判断错误链上是否有指定分类
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
