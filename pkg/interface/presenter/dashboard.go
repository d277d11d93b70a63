package presenter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dashboard is a TUI dashboard for acquisition progress
type Dashboard struct {
	metrics       *entity.Metrics
	recentResults []*entity.Result
	bar           progress.Model
	width         int
	height        int
	startTime     time.Time
	mu            sync.RWMutex
}

type tickMsg time.Time

// NewDashboard creates a new TUI dashboard
func NewDashboard() *Dashboard {
	return &Dashboard{
		metrics:   &entity.Metrics{},
		bar:       progress.New(progress.WithDefaultGradient()),
		startTime: time.Now(),
	}
}

// Init initializes the dashboard
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// Update handles dashboard updates
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.mu.Lock()
		d.width = msg.Width
		d.height = msg.Height
		d.bar.Width = msg.Width - 8
		d.mu.Unlock()
		return d, nil

	case tickMsg:
		// Continue ticking to keep the display updating
		return d, tickCmd()
	}

	return d, nil
}

// View renders the dashboard
func (d *Dashboard) View() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.width == 0 {
		return "Initializing..."
	}

	var sections []string

	header := d.renderHeader()
	sections = append(sections, header, d.renderProgress())
	headerHeight := lipgloss.Height(header) + 1

	footer := d.renderFooter()
	footerHeight := lipgloss.Height(footer)

	availableHeight := d.height - headerHeight - footerHeight
	if availableHeight < 0 {
		availableHeight = 0
	}
	halfHeight := availableHeight / 2

	leftWidth := d.width / 2
	rightWidth := d.width - leftWidth

	// Row 1: Pool (Left) | Outcomes (Right)
	row1 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderPoolStats(leftWidth, halfHeight),
		d.renderOutcomes(rightWidth, halfHeight),
	)
	sections = append(sections, row1)

	// Row 2: Tiers (Left) | Recent Results (Right)
	remainingHeight := availableHeight - halfHeight
	row2 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderTiers(leftWidth, remainingHeight),
		d.renderRecentResults(rightWidth, remainingHeight),
	)
	sections = append(sections, row2, footer)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// OnMetricsUpdate implements application.MetricsObserver
func (d *Dashboard) OnMetricsUpdate(metrics *entity.Metrics) {
	d.mu.Lock()
	d.metrics = metrics
	d.mu.Unlock()
}

// OnResult implements application.MetricsObserver
func (d *Dashboard) OnResult(result *entity.Result) {
	d.mu.Lock()
	d.recentResults = append(d.recentResults, result)

	// Keep only the last 50 for memory efficiency
	if len(d.recentResults) > 50 {
		d.recentResults = d.recentResults[len(d.recentResults)-50:]
	}
	d.mu.Unlock()
}

func panel(color string, width, height int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(1, 2).
		Width(max(width-2, 0)).  // Adjust for border
		Height(max(height-2, 0)) // Adjust for border
}

func (d *Dashboard) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	timeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#999999"))

	now := time.Now().Format("15:04:05")

	title := titleStyle.Render("Logo Harvester")
	timeInfo := timeStyle.Render(fmt.Sprintf(" Running: %s | Time: %s", formatElapsed(time.Since(d.startTime)), now))

	return title + timeInfo
}

func (d *Dashboard) renderProgress() string {
	return "  " + d.bar.ViewAs(completion(d.metrics))
}

func (d *Dashboard) renderPoolStats(width, height int) string {
	stats := []string{
		"Worker Pool",
		"",
		fmt.Sprintf("Queue Length:      %d", d.metrics.QueueLength),
		fmt.Sprintf("Active Workers:    %d / %d", d.metrics.ActiveWorkers, d.metrics.TotalWorkers),
		fmt.Sprintf("Processed:         %d", d.metrics.Processed),
	}

	elapsed := time.Since(d.startTime).Seconds()
	if elapsed > 0 {
		stats = append(stats,
			"",
			fmt.Sprintf("Domain Rate:       %.2f domains/s", float64(d.metrics.Processed)/elapsed),
		)
	}

	if len(d.metrics.ActiveDomains) > 0 {
		stats = append(stats, "", "Working on:")
		for _, domain := range d.metrics.ActiveDomains {
			stats = append(stats, "  • "+domain)
		}
	}

	return panel("#874BFD", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderOutcomes(width, height int) string {
	m := d.metrics
	stats := []string{
		"Outcomes",
		"",
		fmt.Sprintf("Domains:           %d", m.TotalDomains),
		fmt.Sprintf("Acquired:          %d (reused %d)", m.Acquired, m.Reused),
		fmt.Sprintf("No Asset Found:    %d", m.NotFound),
		fmt.Sprintf("Escalated:         %d", m.Escalated),
		fmt.Sprintf("Pending:           %d", m.Pending),
	}

	if !m.DwellUntil.IsZero() {
		if left := time.Until(m.DwellUntil); left > 0 {
			stats = append(stats, fmt.Sprintf("Re-poll in:        %s", formatElapsed(left)))
		}
	}

	return panel("#FF6B6B", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderTiers(width, height int) string {
	lines := []string{
		"Tiers (accepted / attempts)",
		"",
	}
	for _, tier := range entity.Tiers {
		attempts := d.metrics.Attempts[tier]
		successes := d.metrics.Successes[tier]
		lines = append(lines, fmt.Sprintf("%-20s %5d / %-5d", tier, successes, attempts))
	}

	return panel("#4ECDC4", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderRecentResults(width, height int) string {
	recentCount := len(d.recentResults)

	lines := []string{
		fmt.Sprintf("Recent Results (Total: %d)", recentCount),
		"",
	}

	if recentCount == 0 {
		lines = append(lines, "No domains finished yet...")
	} else {
		// Height - 2 (border) - 2 (padding) - 2 (title + empty line)
		maxShow := max(height-6, 0)
		start := 0
		if recentCount > maxShow {
			start = recentCount - maxShow
		}

		for _, result := range d.recentResults[start:] {
			lines = append(lines, "  "+describeResult(result))
		}
	}

	return panel("#04B575", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Padding(1, 0)

	return footerStyle.Render("Press 'q' or 'Ctrl+C' to quit")
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*500, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the dashboard and closes it once ctx is done
func (d *Dashboard) Run(ctx context.Context) error {
	p := tea.NewProgram(d, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// completion is the fraction of domains in a terminal state
func completion(m *entity.Metrics) float64 {
	if m.TotalDomains == 0 {
		return 0
	}
	done := float64(m.Acquired + m.NotFound)
	return min(done/float64(m.TotalDomains), 1)
}

// describeResult renders one result on a single line
func describeResult(r *entity.Result) string {
	switch {
	case r.State == entity.StateAcquired && r.Reused:
		return fmt.Sprintf("✓ %s (already on disk)", r.Domain)
	case r.State == entity.StateAcquired:
		return fmt.Sprintf("✓ %s via %s", r.Domain, r.Tier)
	case r.Error != "":
		return fmt.Sprintf("✗ %s: %s", r.Domain, r.Error)
	}
	return fmt.Sprintf("· %s %s", r.Domain, r.State)
}

func formatElapsed(elapsed time.Duration) string {
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
