package service

import (
	"regexp"
	"strings"
)

type TaskExtractor interface {
	ExtractTasks(text string) []string
}

// BulletTaskExtractor treats every line opened by a bullet or list number
// as one task.
type BulletTaskExtractor struct{}

var bulletRe = regexp.MustCompile(`^\s*(?:[-*•+·▪◦]|\d+[.)、]|\(\d+\)|[a-zA-Z][.)])\s+`)

func (BulletTaskExtractor) ExtractTasks(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var tasks []string
	for _, line := range strings.Split(text, "\n") {
		loc := bulletRe.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if task := strings.TrimSpace(line[loc[1]:]); task != "" {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// countTasks applies the minimum-one rule: unmarked but non-empty text is a
// single task.
func countTasks(x TaskExtractor, text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	if n := len(x.ExtractTasks(text)); n > 0 {
		return n
	}
	return 1
}

// HasBlocker reports whether blocker text names a real impediment.
func HasBlocker(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t != "" && t != "none" && t != "n/a"
}
