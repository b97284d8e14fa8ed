// Copyright 2026 The TQ Core Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tqcore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// NumericStats holds the numeric aggregates of one column. Pointers are nil
// when the aggregate was not computed (non-numeric column or empty dataset).
type NumericStats struct {
	MinValue    *float64
	MaxValue    *float64
	AvgValue    *float64
	StddevValue *float64
}

// ColumnProfile holds the profiling metrics of one column.
type ColumnProfile struct {
	ColumnName          string   `json:"col_name"`
	DataType            string   `json:"data_type"`
	ColumnPosition      int      `json:"col_position"`
	NullCount           int64    `json:"null_count"`
	BlankCount          *int64   `json:"blank_count,omitempty"`  // string only
	MinValue            *float64 `json:"min_value,omitempty"`    // numeric only
	MaxValue            *float64 `json:"max_value,omitempty"`    // numeric only
	AvgValue            *float64 `json:"avg_value,omitempty"`    // numeric only
	StddevValue         *float64 `json:"stddev_value,omitempty"` // numeric only (population)
	ProfilingDurationMs int64    `json:"profiling_duration_ms"`
}

// DatasetProfile holds the profiling metrics of a whole dataset.
type DatasetProfile struct {
	ProfiledAt          int64                     `json:"profiled_at"`
	TotalRows           int64                     `json:"total_rows"`
	ColumnProfiles      map[string]*ColumnProfile `json:"column_profiles"`
	ProfilingDurationMs int64                     `json:"profiling_duration_ms"`
	Errors              []error                   `json:"-"`
}

// Profiler computes descriptive statistics for a dataset through the same
// expression boundary the rules use. Aggregates for independent columns run
// concurrently.
type Profiler struct {
	logger *slog.Logger
}

// NewProfiler creates a Profiler. A nil logger is replaced with a discard
// handler.
func NewProfiler(logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Profiler{logger: logger}
}

// ProfileDataset computes null counts for every column, blank counts for
// string columns and min/max/avg/stddev for numeric columns. Individual
// aggregate failures are collected on the profile, not fatal; the profile
// carries whatever was computed.
func (p *Profiler) ProfileDataset(ctx context.Context, ds Dataset, maxConcurrent int) (*DatasetProfile, error) {
	startTime := time.Now()
	taskPool := NewTaskPool(maxConcurrent, p.logger)

	profile := &DatasetProfile{
		ProfiledAt:     time.Now().Unix(),
		ColumnProfiles: make(map[string]*ColumnProfile),
	}

	totalRows, err := ds.RowCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get total row count: %w", err)
	}
	profile.TotalRows = totalRows

	schema, err := ds.Schema(ctx)
	if err != nil {
		return profile, fmt.Errorf("failed to read dataset schema: %w", err)
	}

	if len(schema.Columns) == 0 {
		p.logger.Warn("no columns found in dataset, returning basic info")
		profile.ProfilingDurationMs = time.Since(startTime).Milliseconds()
		return profile, nil
	}

	p.logger.Debug(fmt.Sprintf("found %d columns to process", len(schema.Columns)))

	var profileLock sync.Mutex
	var columnsWg sync.WaitGroup
	for _, c := range schema.Columns {
		column := c
		var colWg sync.WaitGroup
		var colLock sync.Mutex
		colStartTime := time.Now()

		p.logger.Debug("start column processing",
			"col_name", column.Name,
			"col_type", column.Type)

		colProfile := &ColumnProfile{
			ColumnName:     column.Name,
			DataType:       column.Type,
			ColumnPosition: column.Position,
		}

		taskIdPrefix := fmt.Sprintf("task:%s:", column.Name)

		enqueueTask(taskPool, &colWg, taskIdPrefix+"null_count", func() error {
			nullCount, err := ds.EvalAggregate(ctx, arith("-", agg(AggCountAll), agg(AggCount, col(column.Name))))
			if err != nil {
				p.logger.Warn("failed to get NULL count", "error", err.Error(), "col_name", column.Name)
				return err
			}
			colLock.Lock()
			colProfile.NullCount = int64(nullCount)
			colLock.Unlock()
			return nil
		})

		if IsStringType(column.Type) {
			enqueueTask(taskPool, &colWg, taskIdPrefix+"blank_count", func() error {
				blanks, err := ds.EvalAggregate(ctx, agg(AggCountIf, compare("=", col(column.Name), lit(""))))
				if err != nil {
					p.logger.Warn("failed to get blank count", "error", err.Error(), "col_name", column.Name)
					return err
				}
				blankCount := int64(blanks)
				colLock.Lock()
				colProfile.BlankCount = &blankCount
				colLock.Unlock()
				return nil
			})
		}

		if IsNumericType(column.Type) {
			enqueueTask(taskPool, &colWg, taskIdPrefix+"num_stats", func() error {
				stats, err := p.numericStats(ctx, ds, column.Name)
				if err != nil {
					p.logger.Warn("failed to get numeric aggregates", "error", err.Error(), "col_name", column.Name)
					return err
				}
				colLock.Lock()
				colProfile.MinValue = stats.MinValue
				colProfile.MaxValue = stats.MaxValue
				colProfile.AvgValue = stats.AvgValue
				colProfile.StddevValue = stats.StddevValue
				colLock.Unlock()
				return nil
			})
		}

		columnsWg.Add(1)
		go func() {
			defer columnsWg.Done()
			colWg.Wait()
			colProfile.ProfilingDurationMs = time.Since(colStartTime).Milliseconds()

			profileLock.Lock()
			profile.ColumnProfiles[column.Name] = colProfile
			profileLock.Unlock()

			p.logger.Debug("finished processing column",
				"col_name", column.Name,
				"proc_duration_ms", colProfile.ProfilingDurationMs)
		}()
	}

	taskPool.Join()
	columnsWg.Wait()

	profile.ProfilingDurationMs = time.Since(startTime).Milliseconds()
	profile.Errors = taskPool.Errors()

	p.logger.Debug("finished dataset profiling",
		"total_rows", profile.TotalRows,
		"profile_duration_ms", profile.ProfilingDurationMs)

	return profile, nil
}

func (p *Profiler) numericStats(ctx context.Context, ds Dataset, column string) (*NumericStats, error) {
	stats := &NumericStats{}
	targets := []struct {
		fn   AggFunc
		dest **float64
	}{
		{AggMin, &stats.MinValue},
		{AggMax, &stats.MaxValue},
		{AggAvg, &stats.AvgValue},
		{AggStddevPop, &stats.StddevValue},
	}
	for _, t := range targets {
		v, err := ds.EvalAggregate(ctx, agg(t.fn, col(column)))
		if err != nil {
			return nil, err
		}
		value := v
		*t.dest = &value
	}
	return stats, nil
}

func enqueueTask(taskPool *TaskPool, subsetWg *sync.WaitGroup, taskId string, task func() error) {
	subsetWg.Add(1)
	taskPool.Enqueue(taskId, func() error {
		defer subsetWg.Done()
		return task()
	})
}

// IsNumericType reports whether an engine type name looks numeric. Engine
// adapters report their native names, so the match is by substring over the
// common SQL and ClickHouse spellings.
func IsNumericType(dataType string) bool {
	t := strings.ToLower(dataType)
	for _, marker := range []string{
		"int", "float", "double", "decimal", "numeric", "real", "number",
	} {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

// IsStringType reports whether an engine type name looks like a string type.
func IsStringType(dataType string) bool {
	t := strings.ToLower(dataType)
	for _, marker := range []string{
		"char", "text", "string", "uuid", "enum",
	} {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}
