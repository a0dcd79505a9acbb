// Package policy 判断已认证身份可以查看或修改哪些资源，均为无副作用的纯函数
package policy

import "intellitest_backend/internal/model"

// Identity 已认证的调用方
type Identity struct {
	ID        uint
	Role      model.UserRole
	ClassName *string
}

func FromUser(u *model.User) Identity {
	return Identity{ID: u.ID, Role: u.Role, ClassName: u.ClassName}
}

// CanManage 管理员和教师可编写题目、组卷、查看监控
func CanManage(id Identity) bool {
	return id.Role == model.Admin || id.Role == model.Teacher
}

func IsAdmin(id Identity) bool {
	return id.Role == model.Admin
}

// CanAccessTest 学生仅能访问未指定班级或包含其班级的试卷
func CanAccessTest(id Identity, test *model.Test) bool {
	if CanManage(id) {
		return true
	}
	if id.Role != model.Student {
		return false
	}
	if test.AssignedClasses.Empty() {
		return true
	}
	if id.ClassName == nil {
		return false
	}
	return test.AssignedClasses.Contains(*id.ClassName)
}

// CanAccessSubmission 学生仅能查看自己的提交
func CanAccessSubmission(id Identity, sub *model.Submission) bool {
	if CanManage(id) {
		return true
	}
	return id.Role == model.Student && sub.StudentID == id.ID
}
