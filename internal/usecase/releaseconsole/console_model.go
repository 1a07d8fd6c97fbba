package releaseconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdmrelease/internal/bootstrap/logging"
	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/ports"
	"pdmrelease/internal/usecase/release"
)

const maxAuditLines = 8
const maxShownFailures = 4

// Service is the part of the release service the console drives.
type Service interface {
	ListRFQs(ctx context.Context, statuses []domainrfq.Status, limit int) ([]ports.RFQ, error)
	GetRFQ(ctx context.Context, ref string) (release.RFQDetail, error)
	GenerateReleaseFiles(ctx context.Context, rfqID string) (release.GenerateResult, error)
	GeneratePackageByID(ctx context.Context, rfqID string) (release.PackageResult, error)
	MarkSent(ctx context.Context, rfqID string) (ports.RFQ, error)
}

type Options struct {
	StatusFilter    string
	Limit           int
	RefreshInterval time.Duration
}

type consoleModel struct {
	ctx             context.Context
	service         Service
	statuses        []domainrfq.Status
	limit           int
	refreshInterval time.Duration

	rfqs          []ports.RFQ
	selectedIndex int
	detail        release.RFQDetail
	hasDetail     bool
	busy          bool
	failures      []release.ItemFailure
	status        string
	auditLogs     []string
}

type rfqsLoadedMsg struct {
	items []ports.RFQ
	err   error
}

type detailLoadedMsg struct {
	rfqID  string
	detail release.RFQDetail
	err    error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action    string
	rfqNumber string
	result    string
	failures  []release.ItemFailure
	err       error
}

func NewConsoleModel(ctx context.Context, service Service, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	limit := options.Limit
	if limit <= 0 {
		limit = 50
	}

	return &consoleModel{
		ctx:             ctx,
		service:         service,
		statuses:        parseStatusFilter(options.StatusFilter),
		limit:           limit,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return tea.Batch(m.loadRFQsCmd(), m.tickCmd())
}

func (m *consoleModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadRFQsCmd(), m.tickCmd())
	case rfqsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.rfqs = msg.items
		if len(m.rfqs) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "no rfqs"
			return m, nil
		}
		if m.selectedIndex >= len(m.rfqs) {
			m.selectedIndex = len(m.rfqs) - 1
		}
		if !m.busy {
			m.status = fmt.Sprintf("refreshed, %d rfqs", len(m.rfqs))
		}
		return m, m.loadDetailCmd()
	case detailLoadedMsg:
		selected, ok := m.selectedRFQ()
		if !ok || selected.ID != msg.rfqID {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.hasDetail = true
		return m, nil
	case actionDoneMsg:
		m.busy = false
		m.failures = msg.failures
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
		}
		m.appendAuditLog(msg.action, msg.rfqNumber, msg.result, msg.err)
		return m, m.loadRFQsCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadRFQsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.rfqs)-1 {
				m.selectedIndex++
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "e":
			return m, m.generateCmd()
		case "p":
			return m, m.packageCmd()
		case "s":
			return m, m.sendCmd()
		}
	}
	return m, nil
}

func (m *consoleModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("PDM Release Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"status=%s limit=%d refresh=%s",
		formatStatusFilter(m.statuses),
		m.limit,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("RFQs"))
	builder.WriteString("\n")
	if len(m.rfqs) == 0 {
		builder.WriteString(dimStyle.Render("- no rfqs"))
		builder.WriteString("\n\n")
	} else {
		for index, rfq := range m.rfqs {
			line := fmt.Sprintf("%s [%s] %s", rfq.Number, rfq.Status, rfq.Title)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Line Items"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		rfq := m.detail.RFQ
		builder.WriteString(fmt.Sprintf("Number: %s  Status: %s  Suppliers: %d\n", rfq.Number, rfq.Status, len(m.detail.Suppliers)))
		if rfq.ReleaseFilesGeneratedAt != nil {
			builder.WriteString(fmt.Sprintf("Release files: %s\n", rfq.ReleaseFilesGeneratedAt.UTC().Format(time.RFC3339)))
		}
		if len(m.detail.Items) == 0 {
			builder.WriteString("- none\n")
		}
		for _, item := range m.detail.Items {
			builder.WriteString(fmt.Sprintf("%3d %-24s rev=%-4s qty=%d %s step=%s pdf=%s\n",
				item.LineNumber,
				firstNonEmpty(item.EffectivePartNumber(), item.Source.FileName),
				firstNonEmpty(item.EffectiveRevision(), "-"),
				item.Quantity,
				item.Unit,
				exportMark(item, domainrfq.ExportStep, okStyle, badStyle),
				exportMark(item, domainrfq.ExportPDF, okStyle, badStyle),
			))
		}
		builder.WriteString("\n")
	}

	if len(m.failures) > 0 {
		builder.WriteString(sectionStyle.Render("Failures"))
		builder.WriteString("\n")
		shown := m.failures
		if len(shown) > maxShownFailures {
			shown = shown[:maxShownFailures]
		}
		for _, failure := range shown {
			builder.WriteString(fmt.Sprintf("- line %d %s: %s\n", failure.LineNumber, failure.Kind, firstLine(failure.Message)))
		}
		if hidden := len(m.failures) - len(shown); hidden > 0 {
			builder.WriteString(dimStyle.Render(fmt.Sprintf("- %d more", hidden)))
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: up/k down/j move  g refresh  e generate  p package  s send  q quit"))
	return builder.String()
}

func (m *consoleModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *consoleModel) loadRFQsCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.ListRFQs(m.ctx, m.statuses, m.limit)
		return rfqsLoadedMsg{items: items, err: err}
	}
}

func (m *consoleModel) loadDetailCmd() tea.Cmd {
	selected, ok := m.selectedRFQ()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		detail, err := m.service.GetRFQ(m.ctx, selected.ID)
		return detailLoadedMsg{rfqID: selected.ID, detail: detail, err: err}
	}
}

func (m *consoleModel) generateCmd() tea.Cmd {
	selected, ok := m.beginAction()
	if !ok {
		return nil
	}
	m.status = "generating " + selected.Number + "..."
	return func() tea.Msg {
		result, err := m.service.GenerateReleaseFiles(m.ctx, selected.ID)
		if err != nil {
			return actionDoneMsg{action: "generate", rfqNumber: selected.Number, err: err}
		}
		return actionDoneMsg{
			action:    "generate",
			rfqNumber: selected.Number,
			result:    fmt.Sprintf("%s (status %s)", result.Summary(), result.NewStatus),
			failures:  result.Failures,
		}
	}
}

func (m *consoleModel) packageCmd() tea.Cmd {
	selected, ok := m.beginAction()
	if !ok {
		return nil
	}
	m.status = "packaging " + selected.Number + "..."
	return func() tea.Msg {
		result, err := m.service.GeneratePackageByID(m.ctx, selected.ID)
		if err != nil {
			return actionDoneMsg{action: "package", rfqNumber: selected.Number, err: err}
		}
		return actionDoneMsg{
			action:    "package",
			rfqNumber: selected.Number,
			result:    fmt.Sprintf("%s (%d files)", result.ArchivePath, result.FileCount),
		}
	}
}

func (m *consoleModel) sendCmd() tea.Cmd {
	selected, ok := m.beginAction()
	if !ok {
		return nil
	}
	if selected.Status != domainrfq.StatusReady {
		m.busy = false
		m.status = fmt.Sprintf("send not allowed: %s is %s", selected.Number, selected.Status)
		return nil
	}
	m.status = "sending " + selected.Number + "..."
	return func() tea.Msg {
		sent, err := m.service.MarkSent(m.ctx, selected.ID)
		if err != nil {
			return actionDoneMsg{action: "send", rfqNumber: selected.Number, err: err}
		}
		return actionDoneMsg{action: "send", rfqNumber: selected.Number, result: string(sent.Status)}
	}
}

// beginAction returns the selected RFQ and marks the console busy. Only one
// action runs at a time.
func (m *consoleModel) beginAction() (ports.RFQ, bool) {
	if m.busy {
		m.status = "another action is running"
		return ports.RFQ{}, false
	}
	selected, ok := m.selectedRFQ()
	if !ok {
		m.status = "no rfq selected"
		return ports.RFQ{}, false
	}
	m.busy = true
	m.failures = nil
	return selected, true
}

func (m *consoleModel) selectedRFQ() (ports.RFQ, bool) {
	if len(m.rfqs) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.rfqs) {
		return ports.RFQ{}, false
	}
	return m.rfqs[m.selectedIndex], true
}

func (m *consoleModel) appendAuditLog(action string, rfqNumber string, result string, opErr error) {
	outcome := strings.TrimSpace(result)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
	}
	if outcome == "" {
		outcome = "ok"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s rfq=%s action=%s result=%s", timestamp, rfqNumber, action, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	level := logging.Info
	if opErr != nil {
		level = logging.Warn
	}
	level(m.ctx, "release console action",
		slog.String("rfq", rfqNumber),
		slog.String("action", action),
		slog.String("result", outcome),
	)
}

func exportMark(item ports.LineItem, kind domainrfq.ExportKind, okStyle, badStyle lipgloss.Style) string {
	required := false
	for _, pending := range item.PendingExports() {
		if pending == kind {
			required = true
		}
	}
	switch {
	case item.Export(kind).HasOutput():
		return okStyle.Render("ok")
	case required:
		return badStyle.Render("missing")
	default:
		return "-"
	}
}

// parseStatusFilter accepts a comma separated status list; unknown entries
// are dropped.
func parseStatusFilter(input string) []domainrfq.Status {
	var statuses []domainrfq.Status
	for _, raw := range strings.Split(input, ",") {
		status, err := domainrfq.ParseStatus(raw)
		if err != nil {
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func formatStatusFilter(statuses []domainrfq.Status) string {
	if len(statuses) == 0 {
		return "all"
	}
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, string(status))
	}
	return strings.Join(parts, ",")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}

func firstLine(body string) string {
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			return line
		}
	}
	return "empty"
}
