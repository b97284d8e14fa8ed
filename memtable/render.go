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

package memtable

import (
	"context"
	"fmt"
	"io"

	"github.com/TabularQuality/tq-core"
	"github.com/olekukonko/tablewriter"
)

// Render writes a dataset as an ASCII table, one header row of column names
// followed by the materialized rows. NULL renders as an empty cell.
func Render(ctx context.Context, w io.Writer, ds tqcore.Dataset) error {
	schema, err := ds.Schema(ctx)
	if err != nil {
		return err
	}
	rows, err := ds.Collect(ctx)
	if err != nil {
		return err
	}

	names := schema.Names()
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(names)

	for _, row := range rows {
		cells := make([]string, len(names))
		for i, name := range names {
			if v := row[name]; v != nil {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		table.Append(cells)
	}

	table.Render()
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}
