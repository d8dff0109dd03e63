package jobconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/domain/partner"
)

const maxShownDiagnostics = 8

// Counter is one labelled summary value.
type Counter struct {
	Label string
	Value int
}

// Snapshot is the view of a job at one poll.
type Snapshot struct {
	Kind        partner.JobKind
	ID          string
	Status      partner.JobStatus
	Subject     string
	Counters    []Counter
	Diagnostics []string
	ErrorLog    string
}

// Loader reads the current state of the watched job.
type Loader func(ctx context.Context) (Snapshot, error)

type ImportReader interface {
	Get(ctx context.Context, id string) (partner.ImportJob, error)
}

type GeocodeReader interface {
	Get(ctx context.Context, id string) (partner.GeocodeJob, error)
}

func ImportLoader(reader ImportReader, id string) Loader {
	return func(ctx context.Context) (Snapshot, error) {
		job, err := reader.Get(ctx, id)
		if err != nil {
			return Snapshot{}, err
		}
		return ImportSnapshot(job), nil
	}
}

func GeocodeLoader(reader GeocodeReader, id string) Loader {
	return func(ctx context.Context) (Snapshot, error) {
		job, err := reader.Get(ctx, id)
		if err != nil {
			return Snapshot{}, err
		}
		return GeocodeSnapshot(job), nil
	}
}

func ImportSnapshot(job partner.ImportJob) Snapshot {
	diagnostics := make([]string, 0, len(job.RowErrors)+len(job.Warnings))
	for _, issue := range job.RowErrors {
		diagnostics = append(diagnostics, fmt.Sprintf("error row %d %s", issue.Row, issue.Message))
	}
	for _, issue := range job.Warnings {
		diagnostics = append(diagnostics, fmt.Sprintf("warn  row %d %s", issue.Row, issue.Message))
	}
	return Snapshot{
		Kind:    partner.JobKindImport,
		ID:      job.ID,
		Status:  job.Status,
		Subject: job.OriginalFileName,
		Counters: []Counter{
			{Label: "inserted", Value: job.Summary.Inserted},
			{Label: "updated", Value: job.Summary.Updated},
			{Label: "unchanged", Value: job.Summary.Unchanged},
			{Label: "failedRows", Value: job.Summary.FailedRows},
		},
		Diagnostics: diagnostics,
		ErrorLog:    job.ErrorLog,
	}
}

func GeocodeSnapshot(job partner.GeocodeJob) Snapshot {
	diagnostics := make([]string, 0, len(job.RowErrors))
	for _, issue := range job.RowErrors {
		diagnostics = append(diagnostics, fmt.Sprintf("school %s %s", firstNonEmpty(issue.ExternalKey, issue.SchoolID), issue.Message))
	}
	return Snapshot{
		Kind:    partner.JobKindGeocode,
		ID:      job.ID,
		Status:  job.Status,
		Subject: fmt.Sprintf("limit %d", job.RequestedLimit),
		Counters: []Counter{
			{Label: "candidates", Value: job.Summary.TotalCandidates},
			{Label: "processed", Value: job.Summary.Processed},
			{Label: "updated", Value: job.Summary.Updated},
			{Label: "skipped", Value: job.Summary.Skipped},
			{Label: "failed", Value: job.Summary.Failed},
		},
		Diagnostics: diagnostics,
		ErrorLog:    job.ErrorLog,
	}
}

type Options struct {
	RefreshInterval time.Duration
	// ExitOnFinish quits the program once the job is terminal.
	ExitOnFinish bool
}

type jobModel struct {
	ctx             context.Context
	load            Loader
	refreshInterval time.Duration
	exitOnFinish    bool

	snapshot Snapshot
	loaded   bool
	polls    int
	status   string
}

type snapshotLoadedMsg struct {
	snapshot Snapshot
	err      error
}

type tickMsg struct{}

func NewJobModel(ctx context.Context, load Loader, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &jobModel{
		ctx:             ctx,
		load:            load,
		refreshInterval: interval,
		exitOnFinish:    options.ExitOnFinish,
		status:          "loading",
	}
}

func (m *jobModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m *jobModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, m.loadCmd()
	case snapshotLoadedMsg:
		m.polls++
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, m.tickCmd()
		}
		m.snapshot = msg.snapshot
		m.loaded = true
		if m.snapshot.Status.Terminal() {
			m.status = "finished"
			logging.Info(m.ctx, "job console observed terminal status",
				slog.String("job_id", m.snapshot.ID), slog.String("status", string(m.snapshot.Status)))
			if m.exitOnFinish {
				return m, tea.Quit
			}
			return m, nil
		}
		m.status = fmt.Sprintf("polling every %s", m.refreshInterval)
		return m, m.tickCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCmd()
		}
	}
	return m, nil
}

func (m *jobModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	var builder strings.Builder
	if !m.loaded {
		builder.WriteString(titleStyle.Render("Partner job"))
		builder.WriteString("\n")
		builder.WriteString("- " + m.status + "\n")
		return builder.String()
	}

	s := m.snapshot
	builder.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", s.Kind, s.ID)))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(firstNonEmpty(s.Subject, "-")))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString(statusStyle(s.Status).Render(string(s.Status)))
	builder.WriteString("\n")
	parts := make([]string, 0, len(s.Counters))
	for _, c := range s.Counters {
		parts = append(parts, fmt.Sprintf("%s=%d", c.Label, c.Value))
	}
	builder.WriteString(strings.Join(parts, " "))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Diagnostics"))
	builder.WriteString("\n")
	if len(s.Diagnostics) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n")
	} else {
		start := len(s.Diagnostics) - maxShownDiagnostics
		if start < 0 {
			start = 0
		}
		for _, line := range s.Diagnostics[start:] {
			builder.WriteString("- " + line + "\n")
		}
		if start > 0 {
			builder.WriteString(dimStyle.Render(fmt.Sprintf("  (%d earlier)", start)))
			builder.WriteString("\n")
		}
	}

	if s.ErrorLog != "" {
		builder.WriteString("\n")
		builder.WriteString(sectionStyle.Render("Error"))
		builder.WriteString("\n")
		builder.WriteString(firstLine(s.ErrorLog))
		builder.WriteString("\n")
	}

	builder.WriteString("\n- " + m.status + "\n")
	builder.WriteString(dimStyle.Render("Keys: g refresh  q quit"))
	return builder.String()
}

func (m *jobModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *jobModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		snapshot, err := m.load(m.ctx)
		return snapshotLoadedMsg{snapshot: snapshot, err: err}
	}
}

func statusStyle(status partner.JobStatus) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch status {
	case partner.JobSucceeded:
		return style.Foreground(lipgloss.Color("42"))
	case partner.JobFailed:
		return style.Foreground(lipgloss.Color("196"))
	case partner.JobRunning:
		return style.Foreground(lipgloss.Color("214"))
	default:
		return style
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}
