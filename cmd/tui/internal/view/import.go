package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/merenda/internal/contract"
	"github.com/MrJamesThe3rd/merenda/internal/importer"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateHeader importState = iota
	importStateFilePick
	importStateParsing
	importStatePreview
	importStateResult
)

type contractHeader struct {
	number       string
	supplierID   string
	supplierName string
	format       importer.Format
}

// ImportModel registers a contract from a supplier bid sheet. Parsed line
// items are previewed before anything is written.
type ImportModel struct {
	CommonModel
	ledger        *contract.Ledger
	importService *importer.Service

	state      importState
	header     *contractHeader
	form       *huh.Form
	filePicker filepicker.Model
	items      []contract.LineItemSpec
	preview    list.Model

	status string
	err    error
}

func NewImportModel(ledger *contract.Ledger, impSvc *importer.Service) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	m := ImportModel{
		ledger:        ledger,
		importService: impSvc,
		header:        &contractHeader{format: importer.FormatBidSheet},
		filePicker:    fp,
	}
	m.form = m.buildHeaderForm()

	return m
}

func (m ImportModel) Title() string { return "Import Contract" }

func (m ImportModel) ShortHelp() string {
	if m.state == importStatePreview {
		return "Enter: register contract | Esc: cancel"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m ImportModel) buildHeaderForm() *huh.Form {
	required := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("required")
		}

		return nil
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Key("number").Title("Contract number").Validate(required).Value(&m.header.number),
			huh.NewInput().Key("supplier_id").Title("Supplier ID (CNPJ)").Validate(required).Value(&m.header.supplierID),
			huh.NewInput().Key("supplier_name").Title("Supplier name").Validate(required).Value(&m.header.supplierName),
			huh.NewSelect[importer.Format]().
				Key("format").
				Title("Sheet format").
				Options(huh.NewOption("Bid sheet (CSV)", importer.FormatBidSheet)).
				Value(&m.header.format),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		if m.state == importStatePreview && msg.Type == tea.KeyEnter {
			m.state = importStateParsing
			m.status = "Registering contract..."

			return m, m.registerCmd()
		}

	case parsedSheetMsg:
		if msg.err != nil {
			m.state = importStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.items = msg.items
		m.state = importStatePreview

		items := make([]list.Item, len(msg.items))
		for i, spec := range msg.items {
			items[i] = lineItemEntry{spec: spec, index: i}
		}

		m.preview = list.New(items, lineItemDelegate{}, 90, 20)
		m.preview.Title = fmt.Sprintf("%s | %s | %d line items", m.header.number, m.header.supplierName, len(items))
		m.preview.SetShowStatusBar(false)
		m.preview.SetFilteringEnabled(false)
		m.preview.SetShowHelp(false)

		return m, nil

	case registeredMsg:
		m.state = importStateResult
		if msg.err != nil {
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.status = fmt.Sprintf("Contract %s registered with %d line items.", msg.contract.Number, len(msg.contract.LineItems))

		return m, nil
	}

	switch m.state {
	case importStateHeader:
		return m.updateHeader(msg)
	case importStateFilePick:
		return m.updateFilePick(msg)
	case importStatePreview:
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m ImportModel) updateHeader(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = importStateFilePick

	return m, m.filePicker.Init()
}

func (m ImportModel) updateFilePick(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateParsing
		m.status = fmt.Sprintf("Reading %s...", path)

		return m, m.parseCmd(path)
	}

	return m, cmd
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick, importStatePreview, importStateResult:
		m.state = importStateHeader
		m.err = nil
		m.status = ""
		m.items = nil
		m.form = m.buildHeaderForm()

		return m, m.form.Init()
	}

	return m, Back
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateHeader:
		return pageStyle.Render(m.form.View())
	case importStateFilePick:
		return pageStyle.Render(fmt.Sprintf("Select the bid sheet for contract %s:\n\n%s",
			m.header.number, m.filePicker.View()))
	case importStateParsing:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStatePreview:
		return pageStyle.Render(m.preview.View())
	case importStateResult:
		style := successStyle
		if m.err != nil {
			style = errorStyle
		}

		return lipgloss.NewStyle().Padding(2).Render(style.Render(m.status) + "\n\n(Esc to import another)")
	}

	return ""
}

type parsedSheetMsg struct {
	items []contract.LineItemSpec
	err   error
}

type registeredMsg struct {
	contract *contract.Contract
	err      error
}

func (m ImportModel) parseCmd(path string) tea.Cmd {
	format := m.header.format

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return parsedSheetMsg{err: err}
		}
		defer f.Close()

		items, err := m.importService.Import(format, f)

		return parsedSheetMsg{items: items, err: err}
	}
}

func (m ImportModel) registerCmd() tea.Cmd {
	spec := contract.Spec{
		Number:       m.header.number,
		SupplierID:   m.header.supplierID,
		SupplierName: m.header.supplierName,
		LineItems:    m.items,
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		c, err := m.ledger.RegisterContract(ctx, spec)

		return registeredMsg{contract: c, err: err}
	}
}

type lineItemEntry struct {
	spec  contract.LineItemSpec
	index int
}

func (i lineItemEntry) Title() string       { return i.spec.Description }
func (i lineItemEntry) Description() string { return "" }
func (i lineItemEntry) FilterValue() string { return i.spec.Description }

type lineItemDelegate struct{}

func (d lineItemDelegate) Height() int                             { return 2 }
func (d lineItemDelegate) Spacing() int                            { return 0 }
func (d lineItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d lineItemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(lineItemEntry)
	if !ok {
		return
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	line1 := fmt.Sprintf("%s%3d. %s", cursor, item.index+1, item.spec.Description)
	line2 := fmt.Sprintf("       %s %s at %s | acquired %s",
		FormatQuantity(item.spec.ContractedQuantity),
		item.spec.Unit,
		FormatMoney(item.spec.UnitPrice),
		FormatQuantity(item.spec.AcquiredQuantity),
	)

	fmt.Fprintf(w, "%s\n%s\n", line1, line2)
}
