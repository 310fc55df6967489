package postgres

import "testing"

func TestRepositoryTable(t *testing.T) {
	repo := NewRecordRepository(nil)
	if repo.Table() != defaultRecordTable {
		t.Fatalf("default table mismatch: %s", repo.Table())
	}

	repo = NewRecordRepository(nil, WithTable("telemetry_records_eu"))
	if repo.Table() != "telemetry_records_eu" {
		t.Fatalf("configured table mismatch: %s", repo.Table())
	}

	repo = NewRecordRepository(nil, WithTable(""))
	if repo.Table() != defaultRecordTable {
		t.Fatalf("empty override must keep the default: %s", repo.Table())
	}
}
