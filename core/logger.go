package core

// Logger is implemented by every log sink of the application.
// args may hold errors, maps of extra data or the acting user.User.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
