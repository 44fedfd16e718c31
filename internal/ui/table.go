package ui

import (
	"strconv"

	"storrent/pkg/types"
	"storrent/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	sizeStyle   = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// RenderCatalog renders a listing as a table of id, name and readable size
func RenderCatalog(files []types.FileDescriptor) string {
	if len(files) == 0 {
		return mutedStyle.Render("no files available")
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{strconv.Itoa(f.ID), f.Name, utils.FormatFileSize(f.Size)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "NAME", "SIZE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 2:
				return sizeStyle
			default:
				return cellStyle
			}
		})
	return t.String()
}
