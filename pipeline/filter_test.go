package pipeline

import (
	"testing"

	"github.com/onnwee/record-herald/hexapi"
)

func TestFilterRecords(t *testing.T) {
	events := []hexapi.ScoreEvent{
		{UserName: "A", Position: 1},
		{UserName: "B", Position: 2},
		{UserName: "C", Position: 7},
		{UserName: "D", Position: 1},
		{UserName: "E", Position: 0},
	}
	got := FilterRecords(events)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].UserName != "A" || got[1].UserName != "D" {
		t.Fatalf("wrong events kept: %+v", got)
	}
}

func TestFilterRecordsEmpty(t *testing.T) {
	if got := FilterRecords(nil); len(got) != 0 {
		t.Fatalf("expected empty, got %d", len(got))
	}
}
