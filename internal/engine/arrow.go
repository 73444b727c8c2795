package engine

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"roadsafety/internal/models"
)

// ArrowSchema describes the columnar export of attrs (all attributes when
// attrs is empty). Absent values are Arrow nulls; dps is a nullable boolean.
func ArrowSchema(attrs []string) (*arrow.Schema, error) {
	if len(attrs) == 0 {
		attrs = models.AttributeCodes
	}
	fields := []arrow.Field{
		{Name: "country", Type: arrow.BinaryTypes.String},
		{Name: "year", Type: arrow.PrimitiveTypes.Int32},
	}
	for _, a := range attrs {
		if !models.IsAttribute(a) {
			return nil, fmt.Errorf("arrow export: unknown attribute %q", a)
		}
		typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if a == models.AttrDPS {
			typ = arrow.FixedWidthTypes.Boolean
		}
		fields = append(fields, arrow.Field{Name: a, Type: typ, Nullable: true})
	}
	return arrow.NewSchema(fields, nil), nil
}

// WriteArrow streams records as a single Arrow IPC record batch.
func WriteArrow(w io.Writer, records []models.Record, attrs []string) error {
	schema, err := ArrowSchema(attrs)
	if err != nil {
		return err
	}
	mem := memory.NewGoAllocator()

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	countries := b.Field(0).(*array.StringBuilder)
	years := b.Field(1).(*array.Int32Builder)
	for i := range records {
		r := &records[i]
		countries.Append(r.Country)
		years.Append(int32(r.Year))
		for j, f := range schema.Fields()[2:] {
			fb := b.Field(j + 2)
			if f.Name == models.AttrDPS {
				bb := fb.(*array.BooleanBuilder)
				if r.DPS.Valid {
					bb.Append(r.DPS.Bool)
				} else {
					bb.AppendNull()
				}
				continue
			}
			nb := fb.(*array.Float64Builder)
			if v, ok := r.Value(f.Name); ok {
				nb.Append(v)
			} else {
				nb.AppendNull()
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		iw.Close()
		return fmt.Errorf("arrow export: %w", err)
	}
	return iw.Close()
}
