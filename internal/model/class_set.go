package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ClassSet 班级名集合。库中以逗号拼接的字符串存储，空集合存为 NULL（对所有学生开放）
type ClassSet []string

// NewClassSet 去除首尾空白、丢弃空串并去重，保留首次出现的顺序
func NewClassSet(names ...string) ClassSet {
	seen := make(map[string]bool, len(names))
	set := make(ClassSet, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		set = append(set, n)
	}
	return set
}

// ParseClassSet 解析逗号分隔的旧格式
func ParseClassSet(s string) ClassSet {
	if strings.TrimSpace(s) == "" {
		return ClassSet{}
	}
	return NewClassSet(strings.Split(s, ",")...)
}

func (s ClassSet) Empty() bool {
	return len(s) == 0
}

// Contains 精确匹配，"Class A" 不匹配 "Class AB"
func (s ClassSet) Contains(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

func (s ClassSet) String() string {
	return strings.Join(s, ",")
}

// Validate 班级名中不能出现分隔符
func (s ClassSet) Validate() error {
	for _, n := range s {
		if strings.Contains(n, ",") {
			return fmt.Errorf("class name %q must not contain ','", n)
		}
	}
	return nil
}

func (s ClassSet) Value() (driver.Value, error) {
	if s.Empty() {
		return nil, nil
	}
	return s.String(), nil
}

func (s *ClassSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = ClassSet{}
	case string:
		*s = ParseClassSet(v)
	case []byte:
		*s = ParseClassSet(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ClassSet", src)
	}
	return nil
}

func (s ClassSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		s = ClassSet{}
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON 兼容数组和逗号分隔字符串两种写法
func (s *ClassSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ClassSet{}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = NewClassSet(list...)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("assigned_classes must be an array or a comma-separated string")
	}
	*s = ParseClassSet(str)
	return nil
}
