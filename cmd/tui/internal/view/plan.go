package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/merenda/internal/order"
	"github.com/MrJamesThe3rd/merenda/internal/procurement"
)

type planState int

const (
	planStateForm planState = iota
	planStateLoading
	planStateReview
	planStateSubmitting
	planStateResult
)

type planInput struct {
	week        string
	headcount   string
	responsible string
}

// PlanModel computes a week's demand, shows how it matches the active
// contracts and submits the matched items as orders.
type PlanModel struct {
	CommonModel
	svc *procurement.Service

	state   planState
	input   *planInput
	form    *huh.Form
	spinner spinner.Model
	table   table.Model

	plan   *procurement.Plan
	result *order.SubmitResult
	err    error
}

func NewPlanModel(svc *procurement.Service) PlanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = accentStyle

	m := PlanModel{
		svc:     svc,
		input:   &planInput{},
		spinner: s,
		table: newTable([]table.Column{
			{Title: "Ingredient", Width: 22},
			{Title: "Quantity", Width: 10},
			{Title: "Unit", Width: 5},
			{Title: "Est.", Width: 4},
			{Title: "Status", Width: 20},
			{Title: "Supplier", Width: 24},
			{Title: "Remaining", Width: 10},
		}, 15),
	}
	m.form = m.buildForm()

	return m
}

func (m PlanModel) Title() string { return "Weekly Demand Plan" }

func (m PlanModel) ShortHelp() string {
	switch m.state {
	case planStateReview:
		return "Esc: new plan | s: submit orders"
	case planStateLoading, planStateSubmitting:
		return "Working..."
	case planStateResult:
		return "Esc: back to menu"
	}

	return "Esc: back | Enter: confirm"
}

func (m PlanModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m PlanModel) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("week").
				Title("Menu week").
				Placeholder("12").
				Validate(validatePositiveInt).
				Value(&m.input.week),
			huh.NewInput().
				Key("headcount").
				Title("Students served").
				Placeholder("500").
				Validate(validatePositiveInt).
				Value(&m.input.headcount),
			huh.NewInput().
				Key("responsible").
				Title("Responsible").
				Description("Recorded on every delivery").
				Value(&m.input.responsible),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m PlanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case planLoadedMsg:
		m.err = msg.err
		if msg.err != nil {
			m.state = planStateResult
			return m, nil
		}

		m.plan = msg.plan
		m.refreshTable()
		m.state = planStateReview

		return m, nil

	case planSubmittedMsg:
		m.state = planStateResult
		m.err = msg.err
		m.result = msg.result

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-14, 5))
	}

	switch m.state {
	case planStateForm:
		return m.updateForm(msg)
	case planStateLoading, planStateSubmitting:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case planStateReview:
		return m.updateReview(msg)
	case planStateResult:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
			return m, Back
		}
	}

	return m, nil
}

func (m PlanModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	week, _ := parsePositiveInt(m.input.week)
	headcount, _ := parsePositiveInt(m.input.headcount)

	m.state = planStateLoading

	return m, tea.Batch(m.spinner.Tick, m.loadCmd(week, headcount))
}

func (m PlanModel) updateReview(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.state = planStateForm
			m.form = m.buildForm()

			return m, m.form.Init()
		case "s":
			m.state = planStateSubmitting
			return m, tea.Batch(m.spinner.Tick, m.submitCmd())
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m *PlanModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.plan.Items))

	for _, it := range m.plan.Items {
		estimated := ""
		if it.Demand.Estimated {
			estimated = "*"
		}

		supplier, remaining := "-", "-"
		if it.Match.Matched() {
			supplier = it.Match.SupplierName
			remaining = FormatQuantity(it.Match.Remaining)
		}

		rows = append(rows, table.Row{
			truncate(it.Demand.Ingredient, 22),
			FormatQuantity(it.Demand.Quantity),
			it.Demand.Unit,
			estimated,
			string(it.Match.Status),
			truncate(supplier, 24),
			remaining,
		})
	}

	m.table.SetRows(rows)
}

func (m PlanModel) View() string {
	switch m.state {
	case planStateForm:
		return pageStyle.Render(m.form.View())
	case planStateLoading:
		return pageStyle.Render(fmt.Sprintf("%s Computing demand...", m.spinner.View()))
	case planStateSubmitting:
		return pageStyle.Render(fmt.Sprintf("%s Submitting orders...", m.spinner.View()))
	case planStateReview:
		return m.viewReview()
	case planStateResult:
		return m.viewResult()
	}

	return ""
}

func (m PlanModel) viewReview() string {
	header := fmt.Sprintf("Week %s | %s students | %d ingredients (* = estimated per-capita)",
		accentStyle.Render(fmt.Sprint(m.plan.Week)),
		accentStyle.Render(fmt.Sprint(m.plan.Headcount)),
		len(m.plan.Items),
	)

	parts := []string{
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		boxStyle.Render(m.table.View()),
	}

	if len(m.plan.Warnings) > 0 {
		var sb strings.Builder
		for _, w := range m.plan.Warnings {
			fmt.Fprintf(&sb, "! %s: %s\n", w.Code, w.Message)
		}

		parts = append(parts, warningStyle.Render(sb.String()))
	}

	return pageStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m PlanModel) viewResult() string {
	var sb strings.Builder

	if m.err != nil {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		sb.WriteString("\n\n")
	}

	if m.result == nil {
		return pageStyle.Render(sb.String())
	}

	sb.WriteString(successStyle.Render(fmt.Sprintf("%d order(s) created", len(m.result.Created))))
	sb.WriteString("\n\n")

	for _, o := range m.result.Created {
		fmt.Fprintf(&sb, "  %s | %d line(s) | %s | %s\n",
			o.SupplierName, len(o.Lines), FormatMoney(o.TotalValue), o.Status)
	}

	if len(m.result.Skipped) > 0 {
		sb.WriteString("\n")
		sb.WriteString(warningStyle.Render(fmt.Sprintf("%d item(s) skipped", len(m.result.Skipped))))
		sb.WriteString("\n\n")

		for _, s := range m.result.Skipped {
			fmt.Fprintf(&sb, "  %s (%s %s): %s\n",
				s.Item.Demand.Ingredient, FormatQuantity(s.Item.Demand.Quantity), s.Item.Demand.Unit, s.Reason)
		}
	}

	return pageStyle.Render(sb.String())
}

type planLoadedMsg struct {
	plan *procurement.Plan
	err  error
}

type planSubmittedMsg struct {
	result *order.SubmitResult
	err    error
}

func (m PlanModel) loadCmd(week, headcount int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		plan, err := m.svc.PlanOrders(ctx, week, headcount)

		return planLoadedMsg{plan: plan, err: err}
	}
}

func (m PlanModel) submitCmd() tea.Cmd {
	req := order.SubmitRequest{Items: m.plan.Items, Responsible: strings.TrimSpace(m.input.responsible)}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		result, err := m.svc.SubmitOrders(ctx, req)

		return planSubmittedMsg{result: result, err: err}
	}
}
