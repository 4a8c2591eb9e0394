// Package story implements the content-generation collaborator. The default
// writer is deterministic; a remote generator can be swapped in behind the
// same interface without touching the coordinator.
package story

import (
	"fmt"
	"strings"

	"storyweave/backend/internal/game"
)

// TemplateWriter composes chapters from the world context, the cast, and the
// approved actions of the closing chapter.
type TemplateWriter struct{}

// NewTemplateWriter creates the default writer.
func NewTemplateWriter() *TemplateWriter {
	return &TemplateWriter{}
}

// FirstChapter opens the story by introducing the world and the cast.
func (w *TemplateWriter) FirstChapter(world game.WorldInfo, characters []game.CharacterInfo) (string, error) {
	var b strings.Builder

	title := world.Title
	if title == "" {
		title = "an unnamed world"
	}
	fmt.Fprintf(&b, "The story begins in %s.", title)
	if world.Summary != "" {
		fmt.Fprintf(&b, " %s", world.Summary)
	}
	b.WriteString("\n\n")

	if len(characters) > 0 {
		fmt.Fprintf(&b, "Into this world step %s.", castList(characters))
		for _, c := range characters {
			if c.Background != "" {
				fmt.Fprintf(&b, " %s carries a past of their own: %s.", c.Name, strings.TrimRight(c.Background, "."))
			}
		}
		b.WriteString("\n\n")
	}

	if world.Context != "" {
		fmt.Fprintf(&b, "%s\n\n", world.Context)
	}
	b.WriteString("None of them yet know how their paths will cross, but the first night finds them under the same sky, and something is about to change.")

	return b.String(), nil
}

// NextChapter folds the approved actions of the previous chapter into the
// continuation. chapterNumber is the number of the chapter being written.
func (w *TemplateWriter) NextChapter(world game.WorldInfo, characters []game.CharacterInfo, previous []game.Chapter, approved []game.Action, chapterNumber, maxChapters int) (string, error) {
	if chapterNumber <= len(previous) {
		return "", fmt.Errorf("chapter %d already written", chapterNumber)
	}

	var b strings.Builder

	switch {
	case len(approved) == 0:
		b.WriteString("Time passes, and the world moves of its own accord.")
	case len(approved) == 1:
		fmt.Fprintf(&b, "%s acts decisively: %s.", actorName(approved[0]), strings.TrimRight(approved[0].Content, "."))
	default:
		b.WriteString("The companions act, each in their own way.")
		for _, a := range approved {
			fmt.Fprintf(&b, " %s: %s.", actorName(a), strings.TrimRight(a.Content, "."))
		}
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "The consequences ripple outward through %s, and nothing is quite as it was before.", worldName(world))

	if chapterNumber >= maxChapters {
		b.WriteString("\n\nAnd so the tale draws to its close, its final threads woven together at last.")
	} else {
		b.WriteString("\n\nBut the story is far from over.")
	}

	return b.String(), nil
}

func worldName(world game.WorldInfo) string {
	if world.Title != "" {
		return world.Title
	}
	return "the world"
}

func actorName(a game.Action) string {
	if a.CharacterName != "" {
		return a.CharacterName
	}
	return a.UserName
}

func castList(characters []game.CharacterInfo) string {
	names := make([]string, len(characters))
	for i, c := range characters {
		names[i] = c.Name
	}
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
