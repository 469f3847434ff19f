package model

// Notification carries the fields rendered into a chat webhook message.
type Notification struct {
	ProjectName  string
	UserName     string
	SourceBranch string
	TargetBranch string
	MRTitle      string
	MRURL        string
	ReviewsCount int
	Content      string
	Error        string
	PushURL      string // per-request webhook override
}
