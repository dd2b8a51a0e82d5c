package errors

import "errors"

// ── 错误分类 ──
//
// 业务层以 fmt.Errorf("%w: ...") 包装下列哨兵错误，Handler 层以 errors.Is 映射 HTTP 状态码。

var (
	// ErrNotFound 引用的部门或员工不存在（404）
	ErrNotFound = errors.New("资源不存在")
	// ErrConstraintViolation 同级重名、负薪资、同部门重复员工等约束冲突（400）
	ErrConstraintViolation = errors.New("违反数据约束")
	// ErrInvalidMove 移动会产生环：目标是节点自身或其后代（400）
	ErrInvalidMove = errors.New("非法的移动操作")
	// ErrForbidden 未认证或无权限（403）
	ErrForbidden = errors.New("无权限访问")
	// ErrStorageConflict 并发结构变更导致的锁冲突，重试耗尽后返回（503）
	ErrStorageConflict = errors.New("数据正被其他操作修改，请稍后重试")
)
