package relational

import (
	"fmt"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/ident"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/validate"
)

// ddlStatements renders change into the DDL statements described in
// spec.md §4.6: add-column with the mapped type, drop-column, and
// alter-type with a best-effort cast, applied in the change's given
// order (drops, then adds, then alters).
func ddlStatements(table ident.Table, change schema.Change, mapper validate.Mapper) ([]string, error) {
	stmts := make([]string, 0, len(change.Columns))
	for _, c := range change.Columns {
		col := ident.New(c.Column).Quoted(Quote)
		switch c.Op {
		case schema.OpDrop:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table.Qualified(Quote), col))
		case schema.OpAdd:
			destType, ok := mapper.MapType(c.NewType)
			if !ok {
				return nil, fmt.Errorf("relational: no mapping for added column %q of type %q", c.Column, c.NewType)
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table.Qualified(Quote), col, destType))
		case schema.OpAlterType:
			destType, ok := mapper.MapType(c.NewType)
			if !ok {
				return nil, fmt.Errorf("relational: no mapping for altered column %q of type %q", c.Column, c.NewType)
			}
			stmts = append(stmts, fmt.Sprintf(
				"ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
				table.Qualified(Quote), col, destType, col, destType,
			))
		}
	}
	return stmts, nil
}
