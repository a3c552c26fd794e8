// Package export renders collection records to tabular formats. It walks an
// explicit field-descriptor list instead of reflecting over records, so the
// output columns are exactly the configured fields in display order.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"collectioncore/pkg/domain"
)

// Format selects the output encoding.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// Write renders the entities in the requested format.
func Write(w io.Writer, format Format, view domain.TransactionView, cfg domain.KindConfig, entities []domain.TrackedEntity) error {
	switch format {
	case FormatTSV:
		return WriteTSV(w, view, cfg, entities)
	case FormatXLSX:
		return WriteXLSX(w, view, cfg, entities)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func headerRow(cfg domain.KindConfig) []string {
	header := make([]string, 0, len(cfg.Fields)+1)
	header = append(header, "ID")
	for _, f := range cfg.Fields {
		header = append(header, f.Label)
	}
	return header
}

func entityRow(view domain.TransactionView, cfg domain.KindConfig, e *domain.TrackedEntity) []string {
	row := make([]string, 0, len(cfg.Fields)+1)
	row = append(row, strconv.FormatInt(e.ID, 10))
	for _, f := range cfg.Fields {
		row = append(row, fieldValue(view, f, e))
	}
	return row
}

func fieldValue(view domain.TransactionView, f domain.FieldDescriptor, e *domain.TrackedEntity) string {
	switch f.Type {
	case domain.FieldRefArray:
		names := make([]string, 0, len(f.IDs(e)))
		for _, id := range f.IDs(e) {
			names = append(names, refName(view, f.RefTarget, id))
		}
		return strings.Join(names, ", ")
	case domain.FieldRef:
		raw := f.String(e)
		if raw == "" {
			return ""
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return raw
		}
		return refName(view, f.RefTarget, id)
	default:
		return f.String(e)
	}
}

func refName(view domain.TransactionView, target string, id int64) string {
	switch target {
	case domain.RefTargetUser:
		if u, ok := view.FindUser(id); ok {
			if u.Name != "" {
				return u.Name
			}
			return u.Email
		}
	case domain.RefTargetProject:
		if p, ok := view.FindProject(id); ok {
			return p.ShortTitle
		}
	default:
		if ref, ok := view.FindEntity(domain.EntityRef{Kind: domain.EntityKind(target), ID: id}); ok {
			return ref.Name
		}
	}
	return strconv.FormatInt(id, 10)
}

// WriteTSV renders tab-separated rows with a header line.
func WriteTSV(w io.Writer, view domain.TransactionView, cfg domain.KindConfig, entities []domain.TrackedEntity) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(headerRow(cfg)); err != nil {
		return err
	}
	for i := range entities {
		if err := cw.Write(entityRow(view, cfg, &entities[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders a single-sheet workbook named after the collection.
func WriteXLSX(w io.Writer, view domain.TransactionView, cfg domain.KindConfig, entities []domain.TrackedEntity) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := string(cfg.Kind)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	if err := writeSheetRow(f, sheet, 1, headerRow(cfg)); err != nil {
		return err
	}
	for i := range entities {
		if err := writeSheetRow(f, sheet, i+2, entityRow(view, cfg, &entities[i])); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	converted := make([]any, len(values))
	for i, v := range values {
		converted[i] = v
	}
	return f.SetSheetRow(sheet, cell, &converted)
}
