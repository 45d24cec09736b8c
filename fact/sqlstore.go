package fact

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// SQLStore materializes the relational fact tables into memory. It performs
// a single SELECT per table and never writes. The schema is owned by the
// indexing pipeline; this loader only depends on the column set below.
type SQLStore struct {
	MemStore
}

// OpenSQL connects with the given driver (the Postgres driver is blank
// imported in tools.go) and loads all fact tables.
func OpenSQL(driver, dsn string, logger hclog.Logger) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("fact: open %s: %w", driver, err)
	}
	defer db.Close()
	return LoadSQL(db, logger)
}

// LoadSQL reads every fact table from an open database handle.
func LoadSQL(db *sql.DB, logger hclog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &SQLStore{}
	loaders := []struct {
		table string
		load  func(*sql.DB) (int, error)
	}{
		{"symbols", s.loadSymbols},
		{"assignments", s.loadAssignments},
		{"function_call_args", s.loadCallSites},
		{"function_returns", s.loadReturns},
		{"cfg_blocks", s.loadBlocks},
		{"cfg_edges", s.loadEdges},
		{"property_handlers", s.loadHandlers},
	}
	for _, l := range loaders {
		n, err := l.load(db)
		if err != nil {
			return nil, fmt.Errorf("fact: load %s: %w", l.table, err)
		}
		logger.Debug("loaded fact table", "table", l.table, "rows", n)
	}
	return s, nil
}

// normalizePath makes extractor output from Windows hosts comparable with
// the rest of the store.
func normalizePath(p sql.NullString) string {
	return strings.ReplaceAll(p.String, `\`, "/")
}

func (s *SQLStore) loadSymbols(db *sql.DB) (int, error) {
	rows, err := db.Query(`SELECT file, line, end_line, kind, name FROM symbols`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var file, kind, name sql.NullString
		var line, endLine sql.NullInt64
		if err := rows.Scan(&file, &line, &endLine, &kind, &name); err != nil {
			return 0, err
		}
		s.SymbolRecords = append(s.SymbolRecords, Symbol{
			File:    normalizePath(file),
			Line:    int(line.Int64),
			EndLine: int(endLine.Int64),
			Kind:    kind.String,
			Name:    name.String,
		})
	}
	return len(s.SymbolRecords), rows.Err()
}

func (s *SQLStore) loadAssignments(db *sql.DB) (int, error) {
	rows, err := db.Query(`SELECT file, line, target_var, source_expr, in_function FROM assignments`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var file, target, expr, fn sql.NullString
		var line sql.NullInt64
		if err := rows.Scan(&file, &line, &target, &expr, &fn); err != nil {
			return 0, err
		}
		s.AssignRecords = append(s.AssignRecords, Assignment{
			File:       normalizePath(file),
			Line:       int(line.Int64),
			TargetVar:  target.String,
			SourceExpr: expr.String,
			InFunction: fn.String,
		})
	}
	return len(s.AssignRecords), rows.Err()
}

// loadCallSites regroups the per-argument rows of function_call_args into
// one CallSite per call expression, arguments in positional order.
func (s *SQLStore) loadCallSites(db *sql.DB) (int, error) {
	rows, err := db.Query(`SELECT file, line, caller_function, callee_function, arg_index, arg_expr
		FROM function_call_args`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type callKey struct {
		file   string
		line   int
		caller string
		callee string
	}
	type arg struct {
		index int
		expr  string
	}
	grouped := make(map[callKey][]arg)
	var order []callKey
	for rows.Next() {
		var file, caller, callee, expr sql.NullString
		var line, idx sql.NullInt64
		if err := rows.Scan(&file, &line, &caller, &callee, &idx, &expr); err != nil {
			return 0, err
		}
		key := callKey{normalizePath(file), int(line.Int64), caller.String, callee.String}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], arg{int(idx.Int64), expr.String})
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	for _, key := range order {
		args := grouped[key]
		sort.Slice(args, func(i, j int) bool { return args[i].index < args[j].index })
		exprs := make([]string, 0, len(args))
		for _, a := range args {
			exprs = append(exprs, a.expr)
		}
		s.CallRecords = append(s.CallRecords, CallSite{
			File:      key.file,
			Line:      key.line,
			Caller:    key.caller,
			Callee:    key.callee,
			Arguments: exprs,
		})
	}
	return len(s.CallRecords), nil
}

func (s *SQLStore) loadReturns(db *sql.DB) (int, error) {
	rows, err := db.Query(`SELECT file, line, in_function, return_expr FROM function_returns`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var file, fn, expr sql.NullString
		var line sql.NullInt64
		if err := rows.Scan(&file, &line, &fn, &expr); err != nil {
			return 0, err
		}
		s.ReturnRecords = append(s.ReturnRecords, ReturnStatement{
			File:       normalizePath(file),
			Line:       int(line.Int64),
			InFunction: fn.String,
			Expr:       expr.String,
		})
	}
	return len(s.ReturnRecords), rows.Err()
}

func (s *SQLStore) loadBlocks(db *sql.DB) (int, error) {
	rows, err := db.Query(`SELECT id, file, function, start_line, end_line FROM cfg_blocks`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, start, end sql.NullInt64
		var file, fn sql.NullString
		if err := rows.Scan(&id, &file, &fn, &start, &end); err != nil {
			return 0, err
		}
		s.BlockRecords = append(s.BlockRecords, ControlFlowBlock{
			ID:        id.Int64,
			File:      normalizePath(file),
			Function:  fn.String,
			StartLine: int(start.Int64),
			EndLine:   int(end.Int64),
		})
	}
	return len(s.BlockRecords), rows.Err()
}

func (s *SQLStore) loadEdges(db *sql.DB) (int, error) {
	rows, err := db.Query(`SELECT from_block, to_block FROM cfg_edges`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var from, to sql.NullInt64
		if err := rows.Scan(&from, &to); err != nil {
			return 0, err
		}
		s.EdgeRecords = append(s.EdgeRecords, ControlFlowEdge{From: from.Int64, To: to.Int64})
	}
	return len(s.EdgeRecords), rows.Err()
}

func (s *SQLStore) loadHandlers(db *sql.DB) (int, error) {
	rows, err := db.Query(`SELECT file, line, object_name, property_name, handler_function FROM property_handlers`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var file, object, property, handler sql.NullString
		var line sql.NullInt64
		if err := rows.Scan(&file, &line, &object, &property, &handler); err != nil {
			return 0, err
		}
		s.HandlerRecords = append(s.HandlerRecords, PropertyHandler{
			File:     normalizePath(file),
			Line:     int(line.Int64),
			Object:   object.String,
			Property: property.String,
			Handler:  handler.String,
		})
	}
	return len(s.HandlerRecords), rows.Err()
}
