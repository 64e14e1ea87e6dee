package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Clock returns the current time. Services take one so tests can freeze time.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time { return time.Now().UTC() }

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the package being tested, so we walk up from there.
// Falls back to the current working directory when no go.mod is found (e.g. a deployed binary).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
