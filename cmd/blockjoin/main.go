// Copyright 2024 The Tektite Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	konghcl "github.com/alecthomas/kong-hcl/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spirit-labs/blockjoin/block"
	"github.com/spirit-labs/blockjoin/common"
	"github.com/spirit-labs/blockjoin/conf"
	"github.com/spirit-labs/blockjoin/errors"
	"github.com/spirit-labs/blockjoin/evbatch"
	log "github.com/spirit-labs/blockjoin/logger"
	"github.com/spirit-labs/blockjoin/metrics"
	"github.com/spirit-labs/blockjoin/opers"
)

type arguments struct {
	Config kong.ConfigFlag `help:"Path to an HCL file supplying default flag values" type:"existingfile"`
	Log    log.Config      `help:"Configuration for the logger" embed:"" prefix:"log-"`
	Plan   planCommand     `cmd:"" help:"Print the output columns, sort keys and partition keys of a join"`
	Run    runCommand      `cmd:"" help:"Join two JSON-lines files"`
}

type joinFlags struct {
	Join               string   `help:"Path to the join configuration, JSON or JSON5" type:"existingfile" required:""`
	LeftSchema         string   `help:"Columns of the left block as space separated name:type pairs" required:""`
	RightSchema        string   `help:"Columns of the right block as space separated name:type pairs" required:""`
	LeftSortKeys       []string `help:"Columns the left block is sorted by"`
	LeftPartitionKeys  []string `help:"Columns the left block is partitioned by"`
	RightSortKeys      []string `help:"Columns the right block is sorted by"`
	RightPartitionKeys []string `help:"Columns the right block is partitioned by"`
}

type planCommand struct {
	Flags joinFlags `embed:""`
}

type runCommand struct {
	Flags       joinFlags `embed:""`
	LeftInput   string    `help:"JSON-lines file holding the rows of the left block" type:"existingfile" required:""`
	RightInput  string    `help:"JSON-lines file holding the rows of the right block" type:"existingfile" required:""`
	Output      string    `help:"File to write joined rows to, - for stdout" default:"-"`
	MetricsFile string    `help:"File to write the output row counter to, in prometheus text format"`
}

func main() {
	defer common.PanicHandler()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		stop()
		log.Fatalf("%v", common.LogInternalError(err))
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg := &arguments{}
	parser, err := kong.New(cfg, kong.Configuration(konghcl.Loader))
	if err != nil {
		return errors.WithStack(err)
	}
	kctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)
	if err := cfg.Log.Configure(); err != nil {
		return err
	}
	switch kctx.Command() {
	case "plan":
		return cfg.Plan.run(stdout)
	case "run":
		return cfg.Run.run(ctx, stdout)
	default:
		return errors.Errorf("unexpected command %s", kctx.Command())
	}
}

// load reads the join configuration and plans the join.
func (f *joinFlags) load() (*conf.JoinConfig, map[string]*block.Metadata, *block.Metadata, error) {
	joinConf, err := conf.LoadJoinConfigFile(f.Join)
	if err != nil {
		return nil, nil, nil, err
	}
	leftSchema, err := parseSchema(f.LeftSchema)
	if err != nil {
		return nil, nil, nil, err
	}
	rightSchema, err := parseSchema(f.RightSchema)
	if err != nil {
		return nil, nil, nil, err
	}
	inputs := map[string]*block.Metadata{
		joinConf.LeftBlock: {
			Schema:        leftSchema,
			SortKeys:      f.LeftSortKeys,
			PartitionKeys: f.LeftPartitionKeys,
		},
		joinConf.RightBlock(): {
			Schema:        rightSchema,
			SortKeys:      f.RightSortKeys,
			PartitionKeys: f.RightPartitionKeys,
		},
	}
	outMeta, err := opers.PlanJoin(inputs, joinConf)
	if err != nil {
		return nil, nil, nil, err
	}
	return joinConf, inputs, outMeta, nil
}

func (p *planCommand) run(out io.Writer) error {
	joinConf, _, outMeta, err := p.Flags.load()
	if err != nil {
		return err
	}
	heading := lipgloss.NewStyle().Bold(true)
	fmt.Fprintln(out, heading.Render(fmt.Sprintf("%s join of %s and %s", joinConf.Type(), joinConf.LeftBlock,
		joinConf.RightBlock())))
	fmt.Fprintln(out, printSchema(outMeta.Schema))
	fmt.Fprintf(out, "sort keys: %s\n", strings.Join(outMeta.SortKeys, ", "))
	if outMeta.PartitionKeys == nil {
		fmt.Fprintln(out, "partition keys: none")
	} else {
		fmt.Fprintf(out, "partition keys: %s\n", strings.Join(outMeta.PartitionKeys, ", "))
	}
	return nil
}

func printSchema(schema *evbatch.EventSchema) string {
	width := 0
	for _, name := range schema.ColumnNames() {
		width = max(width, len(name))
	}
	var sb strings.Builder
	for i, name := range schema.ColumnNames() {
		sb.WriteString(fmt.Sprintf("  %-*s %s", width, name, schema.ColumnTypes()[i].String()))
		if i != schema.NumColumns()-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (r *runCommand) run(ctx context.Context, stdout io.Writer) error {
	joinConf, inputs, outMeta, err := r.Flags.load()
	if err != nil {
		return err
	}
	leftFile, err := os.Open(r.LeftInput)
	if err != nil {
		return errors.WithStack(err)
	}
	rightFile, err := os.Open(r.RightInput)
	if err != nil {
		closeQuietly(leftFile)
		return errors.WithStack(err)
	}
	left := block.NewJSONLinesBlock(joinConf.LeftBlock, inputs[joinConf.LeftBlock], leftFile)
	right := block.NewJSONLinesBlock(joinConf.RightBlock(), inputs[joinConf.RightBlock()], rightFile)

	registry := metrics.NewRegistry()
	counter, err := metrics.NewOutputRowsCounter(registry, joinConf.LeftBlock+"_"+joinConf.RightBlock())
	if err != nil {
		left.Close()
		right.Close()
		return err
	}
	op, err := opers.NewHashJoinOperator(ctx, joinConf, left, right, opers.WithOutputCounter(counter))
	if err != nil {
		left.Close()
		right.Close()
		return err
	}
	defer op.Close()

	out := stdout
	if r.Output != "-" {
		f, err := os.Create(r.Output)
		if err != nil {
			return errors.WithStack(err)
		}
		defer closeQuietly(f)
		out = f
	}
	writer := newRowWriter(out, outMeta.Schema)
	for {
		row, ok, err := op.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := writer.write(row); err != nil {
			return err
		}
	}
	if err := writer.flush(); err != nil {
		return err
	}
	log.Infof("joined %s and %s into %d rows", joinConf.LeftBlock, joinConf.RightBlock(), op.OutputRowCount())
	if r.MetricsFile != "" {
		return metrics.WriteTextFile(r.MetricsFile, registry)
	}
	return nil
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warnf("failed to close file: %v", err)
	}
}
