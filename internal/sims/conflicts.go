package sims

import (
	"strings"

	"github.com/router-for-me/SIMReseller/internal/apperr"
	"github.com/router-for-me/SIMReseller/internal/db"
	"github.com/router-for-me/SIMReseller/internal/models"
	"gorm.io/gorm"
)

// identifiers holds the unique columns of a SIM record. Nil values are not checked.
type identifiers struct {
	orderNo    *string
	esimTranNo *string
	iccid      *string
}

// uniqueColumn ties a column to its JSON field name and duplicate message.
type uniqueColumn struct {
	column  string
	field   string
	message string
}

var uniqueColumns = []uniqueColumn{
	{column: "order_no", field: "orderNo", message: "Order number already exists"},
	{column: "esim_tran_no", field: "esimTranNo", message: "eSIM transaction number already exists"},
	{column: "iccid", field: "iccid", message: "ICCID already exists"},
}

// values returns the identifier values in uniqueColumns order.
func (ids identifiers) values() []*string {
	return []*string{ids.orderNo, ids.esimTranNo, ids.iccid}
}

// checkConflicts runs one combined query for rows other than excludeID that
// share any set identifier, and returns a validation error naming each
// colliding field.
func checkConflicts(tx *gorm.DB, excludeID uint64, ids identifiers) error {
	values := ids.values()
	conditions := make([]string, 0, len(uniqueColumns))
	args := make([]any, 0, len(uniqueColumns))
	for i, col := range uniqueColumns {
		if values[i] == nil {
			continue
		}
		conditions = append(conditions, col.column+" = ?")
		args = append(args, *values[i])
	}
	if len(conditions) == 0 {
		return nil
	}

	query := tx.Model(&models.SIM{}).
		Select("id", "order_no", "esim_tran_no", "iccid").
		Where("("+strings.Join(conditions, " OR ")+")", args...)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var rows []models.SIM
	if errFind := query.Find(&rows).Error; errFind != nil {
		return errFind
	}
	if len(rows) == 0 {
		return nil
	}

	var fields []apperr.FieldError
	for i, col := range uniqueColumns {
		if values[i] == nil {
			continue
		}
		for _, row := range rows {
			if equalPtr(rowValue(row, col.column), values[i]) {
				fields = append(fields, apperr.FieldError{Field: col.field, Messages: []string{col.message}})
				break
			}
		}
	}
	return apperr.Validation(ErrDuplicate.Message, fields...)
}

// translateWriteError turns a unique violation that slipped past the
// existence check into the duplicate error.
func translateWriteError(err error) error {
	if !db.IsUniqueViolation(err) {
		return err
	}
	var fields []apperr.FieldError
	for _, col := range uniqueColumns {
		if db.IsUniqueViolationOn(err, col.column) {
			fields = append(fields, apperr.FieldError{Field: col.field, Messages: []string{col.message}})
		}
	}
	return &apperr.Error{Kind: apperr.KindValidation, Message: ErrDuplicate.Message, Fields: fields, Err: err}
}

func rowValue(row models.SIM, column string) *string {
	switch column {
	case "order_no":
		return &row.OrderNo
	case "esim_tran_no":
		return row.EsimTranNo
	default:
		return row.ICCID
	}
}

func equalPtr(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}
