package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/observability"
)

// =============================================================================
// ProgressModel - live batch progress
// =============================================================================

type (
	stageMsg struct {
		index  int
		stage  observability.Stage
		detail string
	}
	bytesMsg struct {
		index       int
		done, total int64
	}
	finishMsg struct {
		index   int
		err     error
		elapsed time.Duration
	}
	batchDoneMsg struct{}
	tickMsg      time.Time
)

// progressItem is the display state of one specifier.
type progressItem struct {
	Spec    string
	Stage   observability.Stage
	Detail  string
	Done    int64
	Total   int64
	Err     error
	Elapsed time.Duration
}

// ProgressModel is the bubbletea model showing one line per specifier.
type ProgressModel struct {
	Items    []progressItem
	Frame    int
	Finished bool
	Width    int
}

// NewProgressModel creates a model with every specifier pending.
func NewProgressModel(specs []string) ProgressModel {
	items := make([]progressItem, len(specs))
	for i, s := range specs {
		items[i] = progressItem{Spec: s}
	}
	return ProgressModel{Items: items, Width: 80}
}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.Finished {
			return m, nil
		}
		m.Frame++
		return m, tick()
	case stageMsg:
		if it := m.item(msg.index); it != nil {
			it.Stage = msg.stage
			it.Detail = msg.detail
		}
	case bytesMsg:
		if it := m.item(msg.index); it != nil {
			it.Done, it.Total = msg.done, msg.total
		}
	case finishMsg:
		if it := m.item(msg.index); it != nil {
			it.Err = msg.err
			it.Elapsed = msg.elapsed
			if msg.err != nil {
				it.Stage = observability.StageFailed
			} else {
				it.Stage = observability.StageDone
			}
		}
	case batchDoneMsg:
		m.Finished = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.Width = msg.Width
	}
	return m, nil
}

func (m ProgressModel) item(i int) *progressItem {
	if i < 0 || i >= len(m.Items) {
		return nil
	}
	return &m.Items[i]
}

func (m ProgressModel) View() string {
	width := 0
	for _, it := range m.Items {
		width = max(width, lipgloss.Width(it.Spec))
	}
	specStyle := lipgloss.NewStyle().Width(width + 2)

	var b strings.Builder
	for _, it := range m.Items {
		b.WriteString(m.icon(it))
		b.WriteString(" ")
		b.WriteString(specStyle.Render(it.Spec))
		b.WriteString(StyleDim.Render(truncate(describe(it), max(m.Width-width-6, 10))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m ProgressModel) icon(it progressItem) string {
	switch it.Stage {
	case "":
		return StyleDim.Render(iconPending)
	case observability.StageDone:
		return styleIconSuccess.Render(iconSuccess)
	case observability.StageFailed:
		return styleIconError.Render(iconError)
	default:
		return styleIconSpinner.Render(spinnerFrames[m.Frame%len(spinnerFrames)])
	}
}

func describe(it progressItem) string {
	switch it.Stage {
	case "":
		return "waiting"
	case observability.StageFetching:
		if it.Total > 0 {
			pct := it.Done * 100 / it.Total
			return fmt.Sprintf("downloading %s / %s (%d%%)",
				humanize.IBytes(uint64(it.Done)), humanize.IBytes(uint64(it.Total)), pct)
		}
		return "downloading " + humanize.IBytes(uint64(it.Done))
	case observability.StageDone:
		return fmt.Sprintf("%s %s (%s)", iconArrow, it.Detail, it.Elapsed.Round(time.Millisecond))
	case observability.StageFailed:
		if it.Err != nil {
			return StyleError.Render(errors.UserMessage(it.Err))
		}
		return "failed"
	default:
		if it.Detail == "" {
			return string(it.Stage)
		}
		return string(it.Stage) + " " + it.Detail
	}
}

func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-1 && n > 1 {
		return string(r[:n-1]) + "…"
	}
	return s
}

// =============================================================================
// Program plumbing
// =============================================================================

// teaHooks forwards pipeline events to a running program.
type teaHooks struct {
	p *tea.Program
}

func (h teaHooks) OnStage(_ context.Context, item observability.Item, stage observability.Stage, detail string) {
	h.p.Send(stageMsg{index: item.Index, stage: stage, detail: detail})
}

func (h teaHooks) OnProgress(_ context.Context, item observability.Item, done, total int64) {
	h.p.Send(bytesMsg{index: item.Index, done: done, total: total})
}

func (h teaHooks) OnFinish(_ context.Context, item observability.Item, err error, d time.Duration) {
	h.p.Send(finishMsg{index: item.Index, err: err, elapsed: d})
}

// teaLogWriter prints log lines above the live view.
type teaLogWriter struct {
	p *tea.Program
}

func (w teaLogWriter) Write(b []byte) (int, error) {
	w.p.Println(strings.TrimRight(string(b), "\n"))
	return len(b), nil
}
