package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [models.Item] to implement [list.Item].
type playlistItem struct {
	item models.Item
}

func (i playlistItem) FilterValue() string { return i.item.Title }
func (i playlistItem) Title() string {
	return fmt.Sprintf("%d. %s", i.item.Index+1, shared.SanitizeDisplayName(i.item.Title))
}
func (i playlistItem) Description() string {
	desc := i.item.ID
	if i.item.Author != "" {
		desc = fmt.Sprintf("%s • %s", i.item.Author, desc)
	}
	return desc
}
