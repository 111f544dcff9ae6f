package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/merenda/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/merenda/internal/config"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
	contractStore "github.com/MrJamesThe3rd/merenda/internal/contract/store"
	"github.com/MrJamesThe3rd/merenda/internal/database"
	"github.com/MrJamesThe3rd/merenda/internal/demand"
	"github.com/MrJamesThe3rd/merenda/internal/export"
	"github.com/MrJamesThe3rd/merenda/internal/importer"
	"github.com/MrJamesThe3rd/merenda/internal/logger"
	"github.com/MrJamesThe3rd/merenda/internal/matching"
	menuStore "github.com/MrJamesThe3rd/merenda/internal/menu/store"
	"github.com/MrJamesThe3rd/merenda/internal/order"
	orderStore "github.com/MrJamesThe3rd/merenda/internal/order/store"
	"github.com/MrJamesThe3rd/merenda/internal/procurement"
	"github.com/MrJamesThe3rd/merenda/internal/reconciliation"
)

type model struct {
	ledger         *contract.Ledger
	procurementSvc *procurement.Service
	importService  *importer.Service
	exportService  *export.Service

	currentView View
	active      view.View

	width, height int
}

type View int

const (
	ViewMenu      View = 0
	ViewPlan      View = 1
	ViewCoverage  View = 2
	ViewContracts View = 3
	ViewImport    View = 4
	ViewExport    View = 5
)

func initialModel() (model, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return model{}, fmt.Errorf("loading config: %w", err)
	}

	// Bubble Tea owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile(filepath.Join(os.TempDir(), "merenda-tui.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return model{}, fmt.Errorf("opening log file: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: "console", Output: logFile})

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return model{}, fmt.Errorf("connecting to database: %w", err)
	}

	if cfg.DB.Migrate {
		if err := database.Migrate(db, log); err != nil {
			return model{}, err
		}
	}

	menus := menuStore.New(db)
	ledger := contract.NewLedger(contractStore.New(db), log, contract.Options{
		MaxAttempts:  cfg.Ledger.MaxAttempts,
		RetryBackoff: cfg.Ledger.RetryBackoff,
	})
	engine := matching.NewEngine()
	processor := order.NewProcessor(ledger, orderStore.New(db), log)

	return model{
		ledger: ledger,
		procurementSvc: procurement.NewService(
			demand.NewCalculator(menus, menus, cfg.Demand.DefaultPerCapitaGrams),
			ledger,
			engine,
			reconciliation.NewReporter(menus, ledger, engine),
			processor,
		),
		importService: importer.NewService(log),
		exportService: export.NewService(processor),
		currentView:   ViewMenu,
	}, nil
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) open(v View) (model, tea.Cmd) {
	switch v {
	case ViewPlan:
		m.active = view.NewPlanModel(m.procurementSvc)
	case ViewCoverage:
		m.active = view.NewCoverageModel(m.procurementSvc)
	case ViewContracts:
		m.active = view.NewContractsModel(m.ledger, m.procurementSvc)
	case ViewImport:
		m.active = view.NewImportModel(m.ledger, m.importService)
	case ViewExport:
		m.active = view.NewExportModel(m.exportService)
	default:
		return m, nil
	}

	m.currentView = v

	var sizeCmd tea.Cmd
	if m.width > 0 {
		sizeCmd = func() tea.Msg { return tea.WindowSizeMsg{Width: m.width, Height: m.height} }
	}

	return m, tea.Batch(m.active.Init(), sizeCmd)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				return m.open(ViewPlan)
			case "2":
				return m.open(ViewCoverage)
			case "3":
				return m.open(ViewContracts)
			case "4":
				return m.open(ViewImport)
			case "5":
				return m.open(ViewExport)
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		m.active = nil

		return m, nil
	}

	if m.active == nil {
		return m, nil
	}

	newModel, cmd := m.active.Update(msg)
	m.active = newModel.(view.View)

	return m, cmd
}

func (m model) View() string {
	if m.currentView == ViewMenu || m.active == nil {
		return lipgloss.NewStyle().Padding(2).Render(
			"Merenda TUI\n\n" +
				"1. Plan Weekly Orders\n" +
				"2. Contract Coverage Report\n" +
				"3. Contract Balances\n" +
				"4. Import Contract\n" +
				"5. Export Orders\n\n" +
				"q. Quit",
		)
	}

	title := lipgloss.NewStyle().Bold(true).Padding(1, 1, 0).Render(m.active.Title())
	help := lipgloss.NewStyle().Faint(true).Padding(0, 1).Render(m.active.ShortHelp())

	return lipgloss.JoinVertical(lipgloss.Left, title, m.active.View(), help)
}

func main() {
	m, err := initialModel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run TUI: %v\n", err)
		os.Exit(1)
	}
}
