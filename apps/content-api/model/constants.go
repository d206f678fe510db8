package model

// 内容类型
const (
	KindPost    Kind = "post"
	KindPage    Kind = "page"
	KindProject Kind = "project"
	KindSkill   Kind = "skill"
	KindHobby   Kind = "hobby"
	KindTech    Kind = "tech"

	// KindAny 搜索时表示不限类型
	KindAny = "any"
)

// 内容状态
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusTrashed   Status = "trashed"
)

// 查询数量
const (
	DefaultSearchLimit  = 10
	DefaultRelatedLimit = 3
	DefaultPopularLimit = 5
	MaxLimit            = 100
)

// 热门统计时间范围
const (
	WindowAll   = "all"
	WindowWeek  = "week"
	WindowMonth = "month"
	WindowYear  = "year"
)

// WordsPerMinute 阅读速度
const WordsPerMinute = 200

// 联系表单
const (
	ContactSubjectFormat = "[%s] New Contact Form Submission"
	ContactSuccessText   = "Thank you for your message. We will get back to you soon!"
	ContactFailureText   = "Failed to send email. Please try again."
)

// AllKinds 内置内容类型
var AllKinds = []Kind{KindPost, KindPage, KindProject, KindSkill, KindHobby, KindTech}

// ValidateKind 校验内容类型
func ValidateKind(kind Kind) bool {
	for _, k := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ValidateStatus 校验内容状态
func ValidateStatus(status Status) bool {
	switch status {
	case StatusDraft, StatusPublished, StatusTrashed:
		return true
	}
	return false
}

// ValidateWindow 校验热门时间范围
func ValidateWindow(window string) bool {
	switch window {
	case WindowAll, WindowWeek, WindowMonth, WindowYear:
		return true
	}
	return false
}
