package errcode

// Codes carried in task notifications:
// - 0: no error
// - 4xxx: the task was dropped for a reason the user can act on
// - 5xxx: system error, the task failed
const (
	OK            = 0
	ResumeMissing = 4004
	SystemError   = 5000
)
