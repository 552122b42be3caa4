package vectordb

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func mustValue(t *testing.T, v interface{}) *qdrant.Value {
	t.Helper()
	val, err := qdrant.NewValue(v)
	if err != nil {
		t.Fatalf("NewValue(%v) error = %v", v, err)
	}
	return val
}

func TestBuildFilter(t *testing.T) {
	filter := buildFilter(map[string]interface{}{
		"filepath": "sorted/Technology/API/md/api.md",
	})

	if len(filter.Must) != 1 {
		t.Fatalf("Expected 1 condition, got %d", len(filter.Must))
	}

	field := filter.Must[0].GetField()
	if field == nil {
		t.Fatal("Expected field condition")
	}
	if field.Key != "filepath" {
		t.Errorf("Expected key filepath, got %s", field.Key)
	}
	if got := field.Match.GetKeyword(); got != "sorted/Technology/API/md/api.md" {
		t.Errorf("Expected keyword match on path, got %s", got)
	}
}

func TestBuildFilter_MultipleConditions(t *testing.T) {
	filter := buildFilter(map[string]interface{}{
		"domain":   "Healthcare",
		"category": "Clinical",
	})

	if len(filter.Must) != 2 {
		t.Fatalf("Expected 2 conditions, got %d", len(filter.Must))
	}

	keys := map[string]bool{}
	for _, cond := range filter.Must {
		field := cond.GetField()
		if field == nil {
			t.Fatal("Expected field condition")
		}
		keys[field.Key] = true
	}
	if !keys["domain"] || !keys["category"] {
		t.Errorf("Expected domain and category conditions, got %v", keys)
	}
}

func TestConvertScoredPoints(t *testing.T) {
	points := []*qdrant.ScoredPoint{
		{
			Id:    qdrant.NewID("4df5de45-4b96-5f77-a1a9-1e71a7b1f8f2"),
			Score: 0.82,
			Payload: map[string]*qdrant.Value{
				"content":     mustValue(t, "Chunk body text"),
				"filename":    mustValue(t, "report.pdf"),
				"filepath":    mustValue(t, "sorted/Finance/Tax/pdf/report.pdf"),
				"chunk_index": mustValue(t, int64(3)),
				"domain":      mustValue(t, "Finance"),
			},
		},
	}

	results := convertScoredPoints(points)
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.ID != "4df5de45-4b96-5f77-a1a9-1e71a7b1f8f2" {
		t.Errorf("Unexpected ID %s", r.ID)
	}
	if r.Score != 0.82 {
		t.Errorf("Expected score 0.82, got %v", r.Score)
	}
	if diff := r.Distance - (1 - 0.82); diff > 1e-6 || diff < -1e-6 {
		t.Errorf("Expected distance 1-score, got %v", r.Distance)
	}
	if r.Content != "Chunk body text" {
		t.Errorf("Expected content extracted from payload, got %q", r.Content)
	}
	if r.Metadata["filename"] != "report.pdf" {
		t.Errorf("Expected filename metadata, got %v", r.Metadata["filename"])
	}
	if r.Metadata["chunk_index"] != int64(3) {
		t.Errorf("Expected chunk_index 3, got %v", r.Metadata["chunk_index"])
	}
}

func TestConvertRetrievedPoints(t *testing.T) {
	points := []*qdrant.RetrievedPoint{
		{
			Id: qdrant.NewID("11111111-2222-3333-4444-555555555555"),
			Payload: map[string]*qdrant.Value{
				"content":     mustValue(t, "First chunk"),
				"chunk_index": mustValue(t, int64(0)),
			},
		},
		{
			Id: qdrant.NewID("66666666-7777-8888-9999-000000000000"),
			Payload: map[string]*qdrant.Value{
				"content":     mustValue(t, "Second chunk"),
				"chunk_index": mustValue(t, int64(1)),
			},
		},
	}

	results := convertRetrievedPoints(points)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Content != "First chunk" || results[1].Content != "Second chunk" {
		t.Errorf("Contents not preserved: %q, %q", results[0].Content, results[1].Content)
	}
	if results[0].Score != 0 {
		t.Errorf("Scroll results carry no score, got %v", results[0].Score)
	}
}

func TestPointIDString(t *testing.T) {
	tests := []struct {
		name     string
		id       *qdrant.PointId
		expected string
	}{
		{
			name:     "nil_id",
			id:       nil,
			expected: "",
		},
		{
			name:     "uuid_id",
			id:       &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: "abc-123"}},
			expected: "abc-123",
		},
		{
			name:     "numeric_id",
			id:       &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: 42}},
			expected: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pointIDString(tt.id); got != tt.expected {
				t.Errorf("pointIDString() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConvertValue_List(t *testing.T) {
	val := mustValue(t, []interface{}{"a", int64(2), true})

	converted := convertValue(val)
	list, ok := converted.([]interface{})
	if !ok {
		t.Fatalf("Expected []interface{}, got %T", converted)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(list))
	}
	if list[0] != "a" || list[1] != int64(2) || list[2] != true {
		t.Errorf("List values not preserved: %v", list)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if err := reg.RegisterProvider("", nil); err == nil {
		t.Error("Expected error for empty name")
	}
	if err := reg.RegisterProvider("qdrant", nil); err == nil {
		t.Error("Expected error for nil provider")
	}

	provider := &qdrantProvider{}
	if err := reg.RegisterProvider("qdrant", provider); err != nil {
		t.Fatalf("RegisterProvider() error = %v", err)
	}

	got, err := reg.GetProvider("qdrant")
	if err != nil {
		t.Fatalf("GetProvider() error = %v", err)
	}
	if got != provider {
		t.Error("GetProvider() returned different provider")
	}

	if _, err := reg.GetProvider("missing"); err == nil {
		t.Error("Expected error for missing provider")
	}
}
