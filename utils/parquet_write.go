package utils

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

type ParquetWriter[T any] struct {
	file   *os.File
	writer *parquet.GenericWriter[T]
}

// NewParquetWriter 默认 snappy 压缩，options 追加在默认配置之后
func NewParquetWriter[T any](filename string, options ...parquet.WriterOption) (*ParquetWriter[T], error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	opts := make([]parquet.WriterOption, 0, 3+len(options))
	opts = append(opts,
		parquet.Compression(&parquet.Snappy),
		parquet.PageBufferSize(64*1024),
		parquet.CreatedBy("krx2db", "", ""),
	)
	opts = append(opts, options...)

	return &ParquetWriter[T]{
		file:   f,
		writer: parquet.NewGenericWriter[T](f, opts...),
	}, nil
}

func (p *ParquetWriter[T]) Write(data []T) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := p.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	return nil
}

// Close 先写 footer 再关闭文件
func (p *ParquetWriter[T]) Close() error {
	if err := p.writer.Close(); err != nil {
		p.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	if err := p.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	return nil
}

func WriteParquet[T any](filename string, rows []T) error {
	w, err := NewParquetWriter[T](filename)
	if err != nil {
		return err
	}
	if err := w.Write(rows); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
