package utils

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"time"
)

// utf-8 BOM，Excel 打开韩文/中文列名时需要
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter 通用 CSV 写入器
type CSVWriter[T any] struct {
	file          *os.File
	writer        *csv.Writer
	headerWritten bool
	columns       []columnInfo
}

type columnInfo struct {
	Index      int    // 字段索引
	HeaderName string // CSV 表头 (来自 col 标签)
	IsTime     bool
	IsPtrTime  bool
	IsDateType bool // type:"date"
}

type CSVOption func(*csvConfig)

type csvConfig struct {
	bom bool
}

// WithBOM 文件开头写入 utf-8 BOM
func WithBOM() CSVOption {
	return func(c *csvConfig) { c.bom = true }
}

func NewCSVWriter[T any](filename string, opts ...CSVOption) (*CSVWriter[T], error) {
	cfg := &csvConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	cols, err := analyzeStructTags[T]()
	if err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if cfg.bom {
		if _, err := f.Write(utf8BOM); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write bom: %w", err)
		}
	}

	return &CSVWriter[T]{
		file:    f,
		writer:  csv.NewWriter(f),
		columns: cols,
	}, nil
}

// analyzeStructTags 解析 col 和 type 标签，col:"-" 的字段跳过
func analyzeStructTags[T any]() ([]columnInfo, error) {
	var t T
	typ := reflect.TypeOf(t)
	if typ == nil {
		return nil, fmt.Errorf("generic type T must be a struct")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("generic type T must be a struct")
	}

	var cols []columnInfo
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		colTag := field.Tag.Get("col")
		if colTag == "-" {
			continue
		}
		if colTag == "" {
			colTag = field.Name
		}

		cols = append(cols, columnInfo{
			Index:      i,
			HeaderName: colTag,
			IsTime:     field.Type == reflect.TypeOf(time.Time{}),
			IsPtrTime:  field.Type == reflect.TypeOf((*time.Time)(nil)),
			IsDateType: field.Tag.Get("type") == "date",
		})
	}
	return cols, nil
}

// Header 返回表头
func (cw *CSVWriter[T]) Header() []string {
	headers := make([]string, len(cw.columns))
	for i, col := range cw.columns {
		headers[i] = col.HeaderName
	}
	return headers
}

// Write 写入数据，首次写入时输出表头
func (cw *CSVWriter[T]) Write(data []T) error {
	if !cw.headerWritten {
		if err := cw.writer.Write(cw.Header()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		cw.headerWritten = true
	}

	record := make([]string, len(cw.columns))
	for _, item := range data {
		val := reflect.ValueOf(item)
		if val.Kind() == reflect.Ptr {
			val = val.Elem()
		}

		for i, col := range cw.columns {
			record[i] = formatField(val.Field(col.Index), col)
		}

		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

func formatField(fieldVal reflect.Value, col columnInfo) string {
	if col.IsTime || col.IsPtrTime {
		var t time.Time
		if col.IsTime {
			t = fieldVal.Interface().(time.Time)
		} else if !fieldVal.IsNil() {
			t = *fieldVal.Interface().(*time.Time)
		}
		if t.IsZero() {
			return ""
		}
		if col.IsDateType {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.DateTime)
	}

	if fieldVal.Kind() == reflect.Ptr {
		if fieldVal.IsNil() {
			return ""
		}
		fieldVal = fieldVal.Elem()
	}

	switch fieldVal.Kind() {
	case reflect.Float64, reflect.Float32:
		f := fieldVal.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ""
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(fieldVal.Bool())
	default:
		return fmt.Sprint(fieldVal.Interface())
	}
}

func (cw *CSVWriter[T]) Close() error {
	if !cw.headerWritten {
		if err := cw.writer.Write(cw.Header()); err != nil {
			cw.file.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("failed to flush: %w", err)
	}
	return cw.file.Close()
}

// WriteCSV 一次性写出整个切片
func WriteCSV[T any](filename string, rows []T, opts ...CSVOption) error {
	w, err := NewCSVWriter[T](filename, opts...)
	if err != nil {
		return err
	}
	if err := w.Write(rows); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
