package tree

import (
	"context"
	"fmt"

	"github.com/ksred/linkdesk/internal/models"
	"gorm.io/gorm"
)

// LoadNodes reads the tree shape of every record of doctype
func LoadNodes(ctx context.Context, db *gorm.DB, doctype string) ([]Node, error) {
	var records []models.Record
	if err := db.WithContext(ctx).
		Select("name", "parent_record", "is_group", "lft", "rgt").
		Where("doc_type = ?", doctype).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load %s tree: %w", doctype, err)
	}

	nodes := make([]Node, len(records))
	for i, r := range records {
		nodes[i] = Node{Name: r.Name, Parent: r.ParentRecord, IsGroup: r.IsGroup, Lft: r.Lft, Rgt: r.Rgt}
	}
	return nodes, nil
}

// RebuildRecords recomputes lft/rgt for all records of doctype and writes back
// the rows whose bounds changed. Run it inside the caller's transaction.
func RebuildRecords(ctx context.Context, db *gorm.DB, doctype string) (int, error) {
	nodes, err := LoadNodes(ctx, db, doctype)
	if err != nil {
		return 0, err
	}

	rebuilt, err := Rebuild(nodes)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i, n := range rebuilt {
		if n.Lft == nodes[i].Lft && n.Rgt == nodes[i].Rgt {
			continue
		}
		if err := db.WithContext(ctx).Model(&models.Record{}).
			Where("doc_type = ? AND name = ?", doctype, n.Name).
			Updates(map[string]interface{}{"lft": n.Lft, "rgt": n.Rgt}).Error; err != nil {
			return changed, fmt.Errorf("update bounds of %s: %w", n.Name, err)
		}
		changed++
	}
	return changed, nil
}
