package version

import "fmt"

// Заполняются через -ldflags при сборке.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию релиза.
func GetVersion() string { return version }

// GetCommit возвращает коммит, из которого собран бинарник.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// Fields возвращает сведения о сборке в виде полей для логгера.
func Fields() map[string]any {
	return map[string]any{
		"version": version,
		"commit":  commit,
		"date":    date,
	}
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
