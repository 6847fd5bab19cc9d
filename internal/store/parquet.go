package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"lapdcalls/internal/calls"
)

// parquetChunkRows bounds the rows held in one arrow record while writing.
const parquetChunkRows = 64 * 1024

func arrowType(t calls.ColumnType) arrow.DataType {
	switch t {
	case calls.Integer:
		return arrow.PrimitiveTypes.Int32
	case calls.Timestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}

// ArrowSchema is the columnar schema of the canonical table.
func ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(calls.Columns))
	for i, c := range calls.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type), Nullable: c.Nullable}
	}
	return arrow.NewSchema(fields, nil)
}

// WriteParquet writes the table to path, replacing any existing file only
// once the new one is complete.
func WriteParquet(path string, t *calls.Table) error {
	return replaceFile(path, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		// hide Close: the parquet writer closes sinks that implement io.Closer
		if err := encodeParquet(struct{ io.Writer }{f}, t); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

func encodeParquet(w io.Writer, t *calls.Table) error {
	schema := ArrowSchema()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
		parquet.WithCreatedBy("lapdcalls"),
	)
	writer, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	pool := memory.NewGoAllocator()
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	recs := t.Records
	for start := 0; ; start += parquetChunkRows {
		end := min(start+parquetChunkRows, len(recs))
		for _, r := range recs[start:end] {
			for i, c := range calls.Columns {
				if err := appendValue(b.Field(i), r.Value(c.Name)); err != nil {
					writer.Close()
					return fmt.Errorf("column %s: %w", c.Name, err)
				}
			}
		}
		rec := b.NewRecord()
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			writer.Close()
			return fmt.Errorf("failed to write parquet record: %w", err)
		}
		if end == len(recs) {
			break
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bb := b.(type) {
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", v)
		}
		bb.Append(s)
	case *array.Int32Builder:
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("want int, got %T", v)
		}
		bb.Append(int32(n))
	case *array.TimestampBuilder:
		tv, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("want time.Time, got %T", v)
		}
		ts, err := arrow.TimestampFromTime(tv, arrow.Microsecond)
		if err != nil {
			return err
		}
		bb.Append(ts)
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

// ReadParquet loads a canonical table. Columns the file lacks stay at their
// zero value; columns the table does not know are ignored. A missing file
// yields ErrNotFound.
func ReadParquet(ctx context.Context, path string) (*calls.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()

	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(memory.DefaultAllocator),
		pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	defer tbl.Release()

	out := &calls.Table{Records: make([]calls.Record, 0, tbl.NumRows())}
	tr := array.NewTableReader(tbl, parquetChunkRows)
	defer tr.Release()
	for tr.Next() {
		rec := tr.Record()
		var cols []int
		for j := 0; j < int(rec.NumCols()); j++ {
			if isKnownColumn(rec.ColumnName(j)) {
				cols = append(cols, j)
			}
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			var r calls.Record
			for _, j := range cols {
				name := rec.ColumnName(j)
				v, err := columnValue(rec.Column(j), i)
				if err != nil {
					return nil, fmt.Errorf("read parquet %s: column %s: %w", path, name, err)
				}
				if err := r.Set(name, v); err != nil {
					return nil, fmt.Errorf("read parquet %s: %w", path, err)
				}
			}
			out.Records = append(out.Records, r)
		}
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return out, nil
}

func columnValue(col arrow.Array, i int) (any, error) {
	if col.IsNull(i) {
		return nil, nil
	}
	switch a := col.(type) {
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Int32:
		return int(a.Value(i)), nil
	case *array.Int64:
		return int(a.Value(i)), nil
	case *array.Float64:
		if math.IsNaN(a.Value(i)) {
			return nil, nil
		}
		return int(a.Value(i)), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit), nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", col.DataType())
	}
}

func isKnownColumn(name string) bool {
	for _, c := range calls.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}
