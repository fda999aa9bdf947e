package simulator

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrisdamba/routesim/internal/models"
)

func sampleMessage(t *testing.T, tn string) EventMessage {
	t.Helper()
	msg, err := serializeResult(models.SimulationResult{
		ID:         "r-" + tn,
		TrackingNo: tn,
		CostFactor: models.CostFactorDuration,
		Conditions: "No delay",
		Path:       "A(COVERAGEAREA) -[acme]-> B(CITY)",
		TotalCost:  3,
		Status:     models.ResultStatusPlanned,
		PlannedAt:  time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("serializeResult: %v", err)
	}
	return msg
}

const partitionDir = "year=2024/month=03/day=01/hour=08"

func TestJSONOutput(t *testing.T) {
	dir := t.TempDir()
	out := NewJSONOutput(dir, "results")
	for _, tn := range []string{"T1", "T2"} {
		msg := sampleMessage(t, tn)
		if err := out.WriteMessage(msg.Topic, msg.Message); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "results", resultTopic, partitionDir, "data.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var lines []ResultEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e ResultEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, e)
	}
	if len(lines) != 2 || lines[1].TrackingNo != "T2" || lines[0].TotalCost != 3 {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestCSVOutput(t *testing.T) {
	dir := t.TempDir()
	out := NewCSVOutput(dir, "results")
	msg := sampleMessage(t, "T1")
	if err := out.WriteMessage(msg.Topic, msg.Message); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "results", resultTopic, partitionDir, "data.csv"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	col := -1
	for i, h := range rows[0] {
		if h == "trackingNo" {
			col = i
		}
	}
	if col < 0 || rows[1][col] != "T1" {
		t.Fatalf("header %v, row %v", rows[0], rows[1])
	}
}

func TestOutputRejectsMissingTimestamp(t *testing.T) {
	out := NewJSONOutput(t.TempDir(), "results")
	if err := out.WriteMessage(resultTopic, []byte(`{"trackingNo":"T1"}`)); err == nil {
		t.Fatalf("message without timestamp accepted")
	}
}

type memoryResults struct {
	stored []*models.SimulationResult
}

func (m *memoryResults) BulkCreate(_ context.Context, results []*models.SimulationResult) error {
	m.stored = append(m.stored, results...)
	return nil
}
func (m *memoryResults) Create(ctx context.Context, r *models.SimulationResult) error {
	return m.BulkCreate(ctx, []*models.SimulationResult{r})
}
func (m *memoryResults) GetByTrackingNo(_ context.Context, tn string) ([]*models.SimulationResult, error) {
	var out []*models.SimulationResult
	for _, r := range m.stored {
		if r.TrackingNo == tn {
			out = append(out, r)
		}
	}
	return out, nil
}
func (m *memoryResults) Count(context.Context) (int, error) { return len(m.stored), nil }
func (m *memoryResults) DeleteAll(context.Context) error    { m.stored = nil; return nil }

func TestRepositoryOutputBatches(t *testing.T) {
	repo := &memoryResults{}
	out := NewRepositoryOutput(repo, 2)
	for _, tn := range []string{"T1", "T2", "T3"} {
		msg := sampleMessage(t, tn)
		if err := out.WriteMessage(msg.Topic, msg.Message); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}
	if len(repo.stored) != 2 {
		t.Fatalf("stored before Close = %d, want 2", len(repo.stored))
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	got, _ := repo.GetByTrackingNo(context.Background(), "T3")
	if len(got) != 1 || got[0].ID != "r-T3" || !got[0].PlannedAt.Equal(time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC)) {
		t.Fatalf("T3 = %+v", got)
	}
}

func TestDetermineOutputDestination(t *testing.T) {
	cfg := &models.Config{OutputFormat: "json", OutputPath: t.TempDir(), OutputFolder: "r"}
	out, err := DetermineOutputDestination(cfg, nil)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, ok := out.(*JSONOutput); !ok {
		t.Fatalf("json gave %T", out)
	}
	cfg.OutputFormat = "postgres"
	if _, err := DetermineOutputDestination(cfg, nil); err == nil {
		t.Fatalf("postgres without repository accepted")
	}
	cfg.OutputFormat = "xml"
	if _, err := DetermineOutputDestination(cfg, nil); err == nil {
		t.Fatalf("unknown format accepted")
	}
}
