package service

// Caller 由边界层（认证中间件）解析出的调用方身份，显式传入每个服务方法
type Caller struct {
	AccountID  int64
	Privileged bool
}

func (c Caller) canAccess(accountID int64) bool {
	return c.Privileged || c.AccountID == accountID
}

func (c Caller) requirePrivileged() error {
	if !c.Privileged {
		return newError(ErrAccessDenied, "Access denied: administrator privileges required")
	}
	return nil
}
