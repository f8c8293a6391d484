package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/cargo-dl/pkg/observability"
)

func TestLogProgressHooksQuarterSteps(t *testing.T) {
	var buf bytes.Buffer
	h := newLogProgressHooks(newLogger(&buf, log.InfoLevel))
	item := observability.Item{Index: 0, Spec: "serde"}
	ctx := context.Background()

	for done := int64(0); done <= 100; done += 5 {
		h.OnProgress(ctx, item, done, 100)
	}

	if got := strings.Count(buf.String(), "downloading"); got != 4 {
		t.Errorf("logged %d progress lines, want 4:\n%s", got, buf.String())
	}
	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("final step should be logged:\n%s", buf.String())
	}
}

func TestLogProgressHooksUnknownSize(t *testing.T) {
	var buf bytes.Buffer
	h := newLogProgressHooks(newLogger(&buf, log.InfoLevel))
	item := observability.Item{Index: 1, Spec: "tokio"}

	for done := int64(0); done <= 3*progressStep; done += progressStep / 2 {
		h.OnProgress(context.Background(), item, done, -1)
	}

	if got := strings.Count(buf.String(), "downloading"); got != 3 {
		t.Errorf("logged %d progress lines, want 3:\n%s", got, buf.String())
	}
}

func TestLogProgressHooksStagesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	h := newLogProgressHooks(newLogger(&buf, log.InfoLevel))
	h.OnStage(context.Background(), observability.Item{Spec: "serde"}, observability.StageLocating, "")
	if buf.Len() != 0 {
		t.Errorf("stages should only be logged at debug level, got %q", buf.String())
	}

	h.logger.SetLevel(log.DebugLevel)
	h.OnStage(context.Background(), observability.Item{Spec: "serde"}, observability.StageLocating, "")
	h.OnStage(context.Background(), observability.Item{Spec: "serde"}, observability.StageDone, "")
	if got := strings.Count(buf.String(), "locating"); got != 1 {
		t.Errorf("got %q", buf.String())
	}
	if strings.Contains(buf.String(), "done") {
		t.Error("terminal stages are reported by the summary, not the log")
	}
}

func TestLogProgressHooksRestartAfterRetry(t *testing.T) {
	var buf bytes.Buffer
	h := newLogProgressHooks(newLogger(&buf, log.InfoLevel))
	item := observability.Item{Index: 0, Spec: "serde"}

	for attempt := 0; attempt < 2; attempt++ {
		for done := int64(10); done <= 100; done += 10 {
			h.OnProgress(context.Background(), item, done, 100)
		}
	}

	if got := strings.Count(buf.String(), "downloading"); got != 8 {
		t.Errorf("logged %d progress lines over two attempts, want 8:\n%s", got, buf.String())
	}
}

func TestInteractiveHooksUseProgramLogger(t *testing.T) {
	t.Cleanup(observability.Reset)
	p := tea.NewProgram(NewProgressModel(nil), tea.WithOutput(&bytes.Buffer{}), tea.WithInput(nil))

	hooks, logger := interactiveHooks(p, log.DebugLevel)

	multi, ok := hooks.(observability.MultiPipelineHooks)
	if !ok || len(multi) != 2 {
		t.Fatalf("hooks = %#v, want TUI and stage log hooks", hooks)
	}
	if _, ok := multi[0].(teaHooks); !ok {
		t.Errorf("first hook = %T, want teaHooks", multi[0])
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", logger.GetLevel())
	}
	httpHooks, ok := observability.HTTP().(httpLogHooks)
	if !ok || httpHooks.logger != logger {
		t.Error("HTTP hooks should log through the program logger")
	}
	cacheHooks, ok := observability.Cache().(cacheLogHooks)
	if !ok || cacheHooks.logger != logger {
		t.Error("cache hooks should log through the program logger")
	}
}
