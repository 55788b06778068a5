package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTasks(t *testing.T) {
	x := BulletTaskExtractor{}
	assert.Nil(t, x.ExtractTasks("   "))
	assert.Equal(t, []string{"one", "two", "three", "four"}, x.ExtractTasks("- one\n* two\n1. three\n(2) four\nplain line"))
	assert.Equal(t, []string{"ship it"}, x.ExtractTasks("  • ship it"))
}

func TestCountTasksMinimumOne(t *testing.T) {
	x := BulletTaskExtractor{}
	assert.Equal(t, 0, countTasks(x, ""))
	assert.Equal(t, 1, countTasks(x, "worked on the report"))
	assert.Equal(t, 2, countTasks(x, "- a\n- b"))
}

func TestHasBlocker(t *testing.T) {
	for _, s := range []string{"", "  ", "none", "None", "N/A", " n/a "} {
		assert.False(t, HasBlocker(s), s)
	}
	assert.True(t, HasBlocker("waiting for review"))
}

func TestRecurringKeywords(t *testing.T) {
	texts := []string{
		"Deploy pipeline broken again",
		"pipeline flaky, deploy delayed",
		"Waiting on the pipeline fix",
		"vendor outage",
	}
	got := FrequencyKeywords{}.Recurring(texts, 3, 5)
	assert.Equal(t, []string{"pipeline"}, got)

	got = FrequencyKeywords{}.Recurring(texts, 2, 5)
	assert.Equal(t, []string{"pipeline", "deploy"}, got)

	assert.Empty(t, FrequencyKeywords{}.Recurring(texts[:2], 3, 5))
}
