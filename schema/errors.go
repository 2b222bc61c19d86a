package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidUser indicates an invalid user identifier.
	ErrInvalidUser = errors.New("invalid user")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrTabNotClosable indicates an attempt to close the home tab.
	ErrTabNotClosable = errors.New("tab is not closable")
	// ErrTabPathExists indicates another tab already holds the path.
	ErrTabPathExists = errors.New("tab path already open")
	// ErrInvalidPath indicates a tab path that is not an absolute route.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidSkin indicates an unknown skin preset.
	ErrInvalidSkin = errors.New("invalid skin")
)

// Auth errors carry the messages shown on the login and registration forms.
var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrWrongPassword       = errors.New("密码错误")
	ErrEmailTaken          = errors.New("邮箱已被注册")
	ErrPasswordMismatch    = errors.New("两次输入的密码不一致")
	ErrPasswordTooShort    = errors.New("密码长度至少为6位")
	ErrEmailRequired       = errors.New("请输入邮箱地址")
	ErrEmailInvalid        = errors.New("请输入有效的邮箱地址")
	ErrResetTokenInvalid   = errors.New("重置链接无效或已过期")
	ErrAccountNotFound     = errors.New("账号不存在")
	ErrUnauthorized        = errors.New("Unauthorized")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTOTPRequired        = errors.New("需要动态验证码")
	ErrTOTPInvalid         = errors.New("动态验证码错误")
	ErrNameRequired        = errors.New("请输入用户名")
	ErrCurrentPasswordFail = errors.New("当前密码错误")
)
