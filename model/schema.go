package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

type DataType int

const (
	TypeString DataType = iota
	TypeFloat64
	TypeInt64
	TypeDate     // YYYY-MM-DD
	TypeDateTime // YYYY-MM-DD HH:MM:SS
)

type Column struct {
	Name     string
	Type     DataType
	Nullable bool
	field    int
}

type TableMeta struct {
	TableName  string
	Columns    []Column
	PrimaryKey []string
}

// Row 是一行数据的列名 -> 值映射，缺失的列按 NULL 写入
type Row map[string]interface{}

var (
	tableRegistry   []*TableMeta
	tableRegistryMu sync.Mutex
)

func registerTable(t *TableMeta) {
	tableRegistryMu.Lock()
	defer tableRegistryMu.Unlock()
	tableRegistry = append(tableRegistry, t)
}

// AllTables 返回当前所有已注册的表结构
func AllTables() []*TableMeta {
	tableRegistryMu.Lock()
	defer tableRegistryMu.Unlock()

	result := make([]*TableMeta, len(tableRegistry))
	copy(result, tableRegistry)
	return result
}

// ErrUnknownTable 表名未注册
var ErrUnknownTable = errors.New("unknown table")

// LookupTable 同 TableByName，未注册时返回 ErrUnknownTable
func LookupTable(name string) (*TableMeta, error) {
	if t, ok := TableByName(name); ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
}

// TableByName 按表名查找已注册的表结构
func TableByName(name string) (*TableMeta, bool) {
	tableRegistryMu.Lock()
	defer tableRegistryMu.Unlock()

	for _, t := range tableRegistry {
		if t.TableName == name {
			return t, true
		}
	}
	return nil, false
}

// SchemaFromStruct 通过反射生成 TableMeta 并自动注册
// 指针字段视为可空列
func SchemaFromStruct(tableName string, model interface{}, primaryKey []string) *TableMeta {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var cols []Column

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		colName := field.Tag.Get("col")
		if colName == "" {
			colName = strings.ToLower(field.Name)
		}

		ft := field.Type
		nullable := false
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
			nullable = true
		}

		var dType DataType
		customType := field.Tag.Get("type")
		switch {
		case customType == "date":
			dType = TypeDate
		case customType == "datetime":
			dType = TypeDateTime
		default:
			switch ft.Kind() {
			case reflect.String:
				dType = TypeString
			case reflect.Float64, reflect.Float32:
				dType = TypeFloat64
			case reflect.Int, reflect.Int64, reflect.Int32, reflect.Uint32:
				dType = TypeInt64
			case reflect.Struct:
				if ft == reflect.TypeOf(time.Time{}) {
					dType = TypeDateTime
				}
			default:
				dType = TypeString
			}
		}

		cols = append(cols, Column{Name: colName, Type: dType, Nullable: nullable, field: i})
	}

	meta := &TableMeta{
		TableName:  tableName,
		Columns:    cols,
		PrimaryKey: primaryKey,
	}

	registerTable(meta)

	return meta
}

// ColumnNames 按建表顺序返回列名
func (t *TableMeta) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// IsKey 判断列是否属于主键
func (t *TableMeta) IsKey(col string) bool {
	for _, k := range t.PrimaryKey {
		if k == col {
			return true
		}
	}
	return false
}

// RowOf 把结构体按 col 标签转换为 Row，nil 指针写入 nil
func (t *TableMeta) RowOf(v interface{}) (Row, error) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct || val.NumField() < len(t.Columns) {
		return nil, fmt.Errorf("value of type %T does not match table %s", v, t.TableName)
	}

	row := make(Row, len(t.Columns))
	for _, c := range t.Columns {
		fv := val.Field(c.field)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				row[c.Name] = nil
				continue
			}
			fv = fv.Elem()
		}
		row[c.Name] = fv.Interface()
	}
	return row, nil
}

// RowsOf 批量转换
func RowsOf[T any](t *TableMeta, items []T) ([]Row, error) {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		r, err := t.RowOf(item)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}
