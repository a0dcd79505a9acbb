package util

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 错误类别，业务错误通过 %w 包装其中之一，边界层据此映射状态码
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

var (
	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrQuestionNotFound   = fmt.Errorf("%w: question not found", ErrNotFound)
	ErrTestNotFound       = fmt.Errorf("%w: test not found", ErrNotFound)
	ErrSubmissionNotFound = fmt.Errorf("%w: submission not found", ErrNotFound)

	ErrUsernameTaken      = fmt.Errorf("%w: username already registered", ErrConflict)
	ErrEmailRegistered    = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrAlreadySubmitted   = fmt.Errorf("%w: already submitted this test", ErrConflict)
	ErrQuestionReferenced = fmt.Errorf("%w: question is referenced by graded submissions", ErrConflict)

	ErrTestNotLive = fmt.Errorf("%w: test is not live", ErrInvalidState)

	ErrTestNotAccessible       = fmt.Errorf("%w: not authorized to access this test", ErrForbidden)
	ErrSubmissionNotAccessible = fmt.Errorf("%w: not authorized to view this submission", ErrForbidden)
	ErrPermissionDenied        = fmt.Errorf("%w: permission denied", ErrForbidden)

	ErrInvalidCredentials = fmt.Errorf("%w: incorrect username or password", ErrUnauthenticated)
	ErrInactiveUser       = fmt.Errorf("%w: inactive user", ErrUnauthenticated)
)

// ValidationError 输入不合法；MissingIDs 非空时表示引用了不存在的题目
type ValidationError struct {
	Message    string
	MissingIDs []uint
}

func (e *ValidationError) Error() string {
	if len(e.MissingIDs) == 0 {
		return e.Message
	}
	ids := make([]string, len(e.MissingIDs))
	for i, id := range e.MissingIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(ids, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// UnknownQuestionsError missing 会排序去重
func UnknownQuestionsError(missing []uint) error {
	seen := make(map[uint]bool, len(missing))
	ids := make([]uint, 0, len(missing))
	for _, id := range missing {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &ValidationError{Message: "unknown question id", MissingIDs: ids}
}
