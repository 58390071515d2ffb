// Package tutor provides the AI coach: chat, challenge generation and
// the logic visualizer.
package tutor

import (
	"fmt"

	"github.com/pycoach/server/internal/progression"
)

// Chapter is one syllabus level.
type Chapter struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Focus string `json:"focus"`
}

// Syllabus is the curriculum, ordered by level. The last chapter is the
// level exam ("boss fight") tier.
var Syllabus = []Chapter{
	{Level: 1, Title: "The Basics", Focus: "Variables, Strings, Ints, Print()"},
	{Level: 2, Title: "Logic", Focus: "Booleans, If/Else, Comparisons"},
	{Level: 3, Title: "Looping", Focus: "For Loops, While Loops, Range()"},
	{Level: 4, Title: "Lists & Dicts", Focus: "Lists, Indexing, Dictionaries"},
	{Level: 5, Title: "Functions", Focus: "Def, Return, Arguments"},
	{Level: 6, Title: "Boss Rush", Focus: "Everything combined, exam style"},
}

// ChapterFor returns the chapter for a level, clamped to the syllabus.
func ChapterFor(level int) Chapter {
	if level < 1 {
		level = 1
	}
	if level > progression.MaxLevel {
		level = progression.MaxLevel
	}
	return Syllabus[level-1]
}

// Heading formats a chapter the way prompts and the UI refer to it.
func (c Chapter) Heading() string {
	return fmt.Sprintf("Level %d: %s", c.Level, c.Title)
}
