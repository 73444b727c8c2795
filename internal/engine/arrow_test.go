package engine

import (
	"bytes"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"

	"roadsafety/internal/models"
)

func TestWriteArrow_NullsSurvive(t *testing.T) {
	records := []models.Record{
		{Country: "France", Year: 2000, FatalPcKm: models.Some(2), DPS: models.NullBool{Valid: true}},
		{Country: "Spain", Year: 2001},
	}

	var buf bytes.Buffer
	if err := WriteArrow(&buf, records, []string{models.AttrFatalPcKm, models.AttrDPS}); err != nil {
		t.Fatalf("WriteArrow failed: %v", err)
	}

	r, err := ipc.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Release()

	if !r.Next() {
		t.Fatal("expected one record batch")
	}
	rec := r.Record()
	if rec.NumRows() != 2 || rec.NumCols() != 4 {
		t.Fatalf("shape: %d rows x %d cols", rec.NumRows(), rec.NumCols())
	}

	fatal := rec.Column(2).(*array.Float64)
	if fatal.IsNull(0) || fatal.Value(0) != 2 || !fatal.IsNull(1) {
		t.Errorf("fatal_pc_km column: %v", fatal)
	}

	// A "no" demerit-point flag is false, not null
	dps := rec.Column(3).(*array.Boolean)
	if dps.IsNull(0) || dps.Value(0) || !dps.IsNull(1) {
		t.Errorf("dps column: %v", dps)
	}
}

func TestArrowSchema_UnknownAttribute(t *testing.T) {
	if _, err := ArrowSchema([]string{"bogus"}); err == nil {
		t.Error("expected an error for an unknown attribute")
	}
	s, err := ArrowSchema(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Fields()) != len(models.AttributeCodes)+2 {
		t.Errorf("default schema: got %d fields", len(s.Fields()))
	}
}
