package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/snapshot"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// packageRow is one selectable entry in the package picker.
type packageRow struct {
	ref     descriptor.Ref
	edition string
	deps    int
}

// PackageListModel is the bubbletea model for interactive package
// selection when check is invoked without a package@release argument.
type PackageListModel struct {
	Rows     []packageRow
	Cursor   int
	Selected *descriptor.Ref
	Height   int
	Offset   int
}

// NewPackageListModel creates a picker over every node in the snapshot,
// in graph order.
func NewPackageListModel(snap *snapshot.Snapshot) PackageListModel {
	refs := snap.Graph.Refs()
	rows := make([]packageRow, 0, len(refs))
	for _, ref := range refs {
		d, ok := snap.Graph.Node(ref)
		if !ok {
			continue
		}
		edition := "(none)"
		if d.HasLanguageEdition() {
			edition = d.LanguageEdition
		}
		rows = append(rows, packageRow{ref: ref, edition: edition, deps: len(d.Dependencies)})
	}
	return PackageListModel{
		Rows:   rows,
		Cursor: 0,
		Height: 15,
		Offset: 0,
	}
}

func (m PackageListModel) Init() tea.Cmd {
	return nil
}

func (m PackageListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			ref := m.Rows[m.Cursor].ref
			m.Selected = &ref
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m PackageListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Package"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Rows) {
		end = len(m.Rows)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		rows = append(rows, []string{
			cursor,
			r.ref.String(),
			r.edition,
			fmt.Sprintf("%d", r.deps),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Edition", "Deps").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}

			actualIdx := m.Offset + row
			if actualIdx >= len(m.Rows) {
				return lipgloss.NewStyle()
			}
			isCurrent := actualIdx == m.Cursor

			base := lipgloss.NewStyle()
			if col >= 2 {
				base = base.Foreground(colorGray)
			}
			if isCurrent {
				return base.Foreground(colorCyan).Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Rows))))

	return b.String()
}

// pickPackage runs the interactive picker and returns the chosen ref.
// The second return is false when the user quit without selecting.
func pickPackage(snap *snapshot.Snapshot) (descriptor.Ref, bool, error) {
	m := NewPackageListModel(snap)
	if len(m.Rows) == 0 {
		return descriptor.Ref{}, false, fmt.Errorf("snapshot has no packages")
	}

	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return descriptor.Ref{}, false, err
	}

	fm, ok := finalModel.(PackageListModel)
	if !ok || fm.Selected == nil {
		return descriptor.Ref{}, false, nil
	}
	return *fm.Selected, true, nil
}
