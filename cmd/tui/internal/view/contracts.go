package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/merenda/internal/contract"
	"github.com/MrJamesThe3rd/merenda/internal/procurement"
)

type contractsState int

const (
	contractsStateBrowse contractsState = iota
	contractsStateChange
)

type changeKind int

const (
	changeAmendment changeKind = iota
	changeDelivery
)

type balanceRow struct {
	contractID uuid.UUID
	lineItemID uuid.UUID
	label      string
}

type changeInput struct {
	quantity    string
	responsible string
	description string
}

// ContractsModel lists the balances of every active contract line item and
// records amendments and manual deliveries against them.
type ContractsModel struct {
	CommonModel
	ledger *contract.Ledger
	svc    *procurement.Service

	state  contractsState
	table  table.Model
	rows   []balanceRow
	form   *huh.Form
	kind   changeKind
	input  *changeInput
	status string
	err    error
}

func NewContractsModel(ledger *contract.Ledger, svc *procurement.Service) ContractsModel {
	return ContractsModel{
		ledger: ledger,
		svc:    svc,
		input:  &changeInput{},
		table: newTable([]table.Column{
			{Title: "Contract", Width: 10},
			{Title: "Supplier", Width: 20},
			{Title: "Line item", Width: 30},
			{Title: "Unit", Width: 5},
			{Title: "Price", Width: 11},
			{Title: "Contracted", Width: 10},
			{Title: "Acquired", Width: 10},
			{Title: "Remaining", Width: 10},
		}, 15),
	}
}

func (m ContractsModel) Title() string { return "Contract Balances" }

func (m ContractsModel) ShortHelp() string {
	if m.state == contractsStateChange {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | a: amendment | d: delivery | r: refresh"
}

func (m ContractsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m ContractsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case contractsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.setRows(msg.contracts)
		}

		return m, nil

	case balanceChangedMsg:
		m.state = contractsStateBrowse
		m.form = nil
		m.table.Focus()

		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("Error: %v", msg.err))
		} else {
			m.status = successStyle.Render(msg.summary)
		}

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-10, 5))
		return m, nil
	}

	if m.state == contractsStateChange {
		return m.updateChange(msg)
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.status = ""
			return m, m.loadCmd()
		case "a":
			return m.enterChange(changeAmendment)
		case "d":
			return m.enterChange(changeDelivery)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m ContractsModel) enterChange(kind changeKind) (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return m, nil
	}

	title := "Amendment: quantity added to the contract"
	if kind == changeDelivery {
		title = "Delivery: quantity received"
	}

	m.kind = kind
	m.input = &changeInput{}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("quantity").
				Title(title).
				Validate(validateQuantity).
				Value(&m.input.quantity),
			huh.NewInput().
				Key("responsible").
				Title("Responsible").
				Value(&m.input.responsible),
			huh.NewInput().
				Key("description").
				Title("Note").
				Value(&m.input.description),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = contractsStateChange
	m.table.Blur()

	return m, m.form.Init()
}

func (m ContractsModel) updateChange(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = contractsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.changeCmd()
}

func (m *ContractsModel) setRows(contracts []*contract.Contract) {
	m.rows = nil

	var rows []table.Row

	for _, c := range contracts {
		for _, li := range c.LineItems {
			m.rows = append(m.rows, balanceRow{contractID: c.ID, lineItemID: li.ID, label: li.Description})
			rows = append(rows, table.Row{
				c.Number,
				truncate(c.SupplierName, 20),
				truncate(li.Description, 30),
				li.Unit,
				FormatMoney(li.UnitPrice),
				FormatQuantity(li.ContractedQuantity),
				FormatQuantity(li.AcquiredQuantity),
				FormatQuantity(li.Remaining()),
			})
		}
	}

	m.table.SetRows(rows)
}

func (m ContractsModel) View() string {
	if m.err != nil {
		return pageStyle.Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	content := boxStyle.Render(m.table.View())

	if m.state == contractsStateChange && m.form != nil {
		label := ""
		if idx := m.table.Cursor(); idx >= 0 && idx < len(m.rows) {
			label = m.rows[idx].label
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(fmt.Sprintf("%s\n\n%s", label, m.form.View()))

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = m.status + "\n" + content
	}

	return pageStyle.Render(content)
}

type contractsLoadedMsg struct {
	contracts []*contract.Contract
	err       error
}

type balanceChangedMsg struct {
	summary string
	err     error
}

func (m ContractsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		contracts, err := m.ledger.ListActive(ctx)

		return contractsLoadedMsg{contracts: contracts, err: err}
	}
}

func (m ContractsModel) changeCmd() tea.Cmd {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return nil
	}

	row := m.rows[idx]
	kind := m.kind
	responsible := strings.TrimSpace(m.input.responsible)
	description := strings.TrimSpace(m.input.description)
	quantity, _ := parseQuantity(m.input.quantity)

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		var (
			event *contract.Event
			err   error
		)

		switch kind {
		case changeAmendment:
			event, err = m.svc.RecordAmendment(ctx, contract.AmendmentParams{
				ContractID:  row.contractID,
				LineItemID:  row.lineItemID,
				Quantity:    quantity,
				Responsible: responsible,
				Description: description,
			})
		case changeDelivery:
			event, err = m.svc.RecordDelivery(ctx, contract.DeliveryParams{
				ContractID:  row.contractID,
				LineItemID:  row.lineItemID,
				Quantity:    quantity,
				Responsible: responsible,
				Description: description,
			})
		}

		if err != nil {
			return balanceChangedMsg{err: err}
		}

		return balanceChangedMsg{summary: fmt.Sprintf("%s of %s recorded on %s (%s)",
			event.Type, FormatQuantity(event.Quantity), row.label, FormatMoney(event.ValueImpact))}
	}
}
