package main

import (
	"strings"

	"github.com/spirit-labs/blockjoin/errors"
	"github.com/spirit-labs/blockjoin/evbatch"
	"github.com/spirit-labs/blockjoin/types"
)

// parseSchema parses space separated name:type pairs, e.g. "id:int price:decimal(10,2) name:string".
func parseSchema(s string) (*evbatch.EventSchema, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errors.NewInvalidConfigurationError("schema must have at least one column")
	}
	names := make([]string, 0, len(fields))
	colTypes := make([]types.ColumnType, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		name, sType, ok := strings.Cut(field, ":")
		if !ok || name == "" {
			return nil, errors.NewInvalidConfigurationErrorf("column '%s' must be given as name:type", field)
		}
		if _, exists := seen[name]; exists {
			return nil, errors.NewInvalidConfigurationErrorf("duplicate column '%s'", name)
		}
		seen[name] = struct{}{}
		colType, err := types.StringToColumnType(sType)
		if err != nil {
			return nil, errors.NewInvalidConfigurationErrorf("column '%s': %v", name, err)
		}
		names = append(names, name)
		colTypes = append(colTypes, colType)
	}
	return evbatch.NewEventSchema(names, colTypes), nil
}
