package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message），可选包装底层错误（Err）
//   - 支持 errors.Is / errors.As 以及错误检查函数（IsXXX）
//
// 错误分类：
//   - UNKNOWN_IDENTIFIER：用户/物品不在训练词表中（冷启动），排序阶段就地恢复，不向调用方暴露
//   - CORRUPT_ARTIFACT：模型产物缺失、损坏或自相矛盾，Load 直接失败
//   - DATA_INTEGRITY：排序结果无法与商品目录关联
//   - INVALID_INPUT：调用方违反约定（top_n <= 0、候选集为空等）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNKNOWN_IDENTIFIER"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "codec", "artifact"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is 按 Code 匹配；target 的 Module 为空时不比较模块。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Module == "" || t.Module == e.Module
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装了底层错误的领域错误
func WrapDomainError(module, code string, err error, format string, args ...any) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// 错误代码常量
const (
	// 通用错误代码
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	// 推荐核心错误代码
	ErrorCodeUnknownIdentifier = "UNKNOWN_IDENTIFIER" // 标识符不在训练词表中
	ErrorCodeCorruptArtifact   = "CORRUPT_ARTIFACT"   // 模型产物缺失或不一致
	ErrorCodeDataIntegrity     = "DATA_INTEGRITY"     // 结果无法关联商品目录
)

// 模块名称常量
const (
	ModuleStore    = "store"    // 存储模块
	ModuleCodec    = "codec"    // 标识编码模块
	ModuleModel    = "model"    // 模型模块
	ModuleRank     = "rank"     // 排序模块
	ModuleArtifact = "artifact" // 模型产物持久化模块
	ModuleCatalog  = "catalog"  // 商品目录模块
)

// 哨兵错误，用于 errors.Is 判断（不限定模块）
var (
	ErrUnknownIdentifier = &DomainError{Code: ErrorCodeUnknownIdentifier, Message: "unknown identifier"}
	ErrCorruptArtifact   = &DomainError{Code: ErrorCodeCorruptArtifact, Message: "corrupt or missing artifact"}
	ErrDataIntegrity     = &DomainError{Code: ErrorCodeDataIntegrity, Message: "data integrity violation"}
	ErrInvalidInput      = &DomainError{Code: ErrorCodeInvalidInput, Message: "invalid input"}
)

// 通用错误检查函数

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsUnknownIdentifier 检查错误是否为 UNKNOWN_IDENTIFIER
func IsUnknownIdentifier(err error) bool {
	return hasCode(err, ErrorCodeUnknownIdentifier)
}

// IsCorruptArtifact 检查错误是否为 CORRUPT_ARTIFACT
func IsCorruptArtifact(err error) bool {
	return hasCode(err, ErrorCodeCorruptArtifact)
}

// IsDataIntegrity 检查错误是否为 DATA_INTEGRITY
func IsDataIntegrity(err error) bool {
	return hasCode(err, ErrorCodeDataIntegrity)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
