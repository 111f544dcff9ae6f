package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/merenda/internal/procurement"
	"github.com/MrJamesThe3rd/merenda/internal/reconciliation"
)

type CoverageModel struct {
	CommonModel
	svc *procurement.Service

	week    *string
	form    *huh.Form
	table   table.Model
	report  *reconciliation.Report
	loading bool
	err     error
}

func NewCoverageModel(svc *procurement.Service) CoverageModel {
	m := CoverageModel{
		svc:  svc,
		week: new(""),
		table: newTable([]table.Column{
			{Title: "Ingredient", Width: 22},
			{Title: "Status", Width: 20},
			{Title: "Supplier", Width: 24},
			{Title: "Line item", Width: 30},
			{Title: "Remaining", Width: 10},
		}, 15),
	}
	m.form = m.buildForm()

	return m
}

func (m CoverageModel) Title() string { return "Contract Coverage" }

func (m CoverageModel) ShortHelp() string {
	if m.report != nil {
		return "Esc: back | r: refresh | w: other week"
	}

	return "Esc: back | Enter: confirm"
}

func (m CoverageModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m CoverageModel) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("week").
				Title("Menu week").
				Validate(validatePositiveInt).
				Value(m.week),
		),
	).WithWidth(40).WithShowHelp(false)
}

func (m CoverageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case coverageLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.report = msg.report

		if m.report != nil {
			m.refreshTable()
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-12, 5))
		return m, nil
	}

	if m.report == nil && m.err == nil && !m.loading {
		return m.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "w":
			m.report, m.err = nil, nil
			m.form = m.buildForm()

			return m, m.form.Init()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m CoverageModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return m, Back
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.loading = true

	return m, m.loadCmd()
}

func (m *CoverageModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.report.Lines))

	for _, l := range m.report.Lines {
		supplier, item, remaining := "-", "-", "-"
		if l.Match.Matched() {
			supplier = l.Match.SupplierName
			item = l.Match.Description
			remaining = FormatQuantity(l.Match.Remaining) + " " + l.Match.Unit
		}

		rows = append(rows, table.Row{
			truncate(l.Ingredient, 22),
			string(l.Status()),
			truncate(supplier, 24),
			truncate(item, 30),
			remaining,
		})
	}

	m.table.SetRows(rows)
}

func (m CoverageModel) View() string {
	switch {
	case m.loading:
		return pageStyle.Render("Loading coverage...")
	case m.err != nil:
		return pageStyle.Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.report == nil:
		return pageStyle.Render(m.form.View())
	}

	summary := fmt.Sprintf("Week %d | coverage %s | %d covered, %d insufficient balance, %d uncontracted",
		m.report.Week,
		accentStyle.Render(m.report.Coverage.StringFixed(2)+"%"),
		m.report.Covered,
		m.report.InsufficientBalance,
		m.report.Uncontracted,
	)

	return pageStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(summary),
		boxStyle.Render(m.table.View()),
	))
}

type coverageLoadedMsg struct {
	report *reconciliation.Report
	err    error
}

func (m CoverageModel) loadCmd() tea.Cmd {
	week, _ := parsePositiveInt(*m.week)

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		report, err := m.svc.GenerateReport(ctx, week)

		return coverageLoadedMsg{report: report, err: err}
	}
}
