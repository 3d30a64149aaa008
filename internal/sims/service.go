// Package sims stores the eSIM orders owned by each user.
package sims

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/router-for-me/SIMReseller/internal/apperr"
	"github.com/router-for-me/SIMReseller/internal/config"
	"github.com/router-for-me/SIMReseller/internal/db"
	"github.com/router-for-me/SIMReseller/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service errors.
var (
	ErrNotFound     = apperr.New(apperr.KindNotFound, "SIM details not found")
	ErrDuplicate    = apperr.Validation("Order number, eSIM transaction number, or ICCID already exists")
	ErrEmptyUpdate  = apperr.Validation("No update values provided")
	errUnknownOwner = errors.New("sims: owner not found")
)

// CreateInput is the payload for a new SIM record.
type CreateInput struct {
	OrderNo       string  `json:"orderNo" validate:"required"`
	EsimTranNo    *string `json:"esimTranNo"`
	ICCID         *string `json:"iccid"`
	TransactionID string  `json:"transactionId" validate:"required"`
}

// UpdateInput is a partial SIM update. Nil fields are left untouched.
type UpdateInput struct {
	OrderNo       *string `json:"orderNo" validate:"omitempty,min=1"`
	EsimTranNo    *string `json:"esimTranNo" validate:"omitempty,min=1"`
	ICCID         *string `json:"iccid" validate:"omitempty,min=1"`
	TransactionID *string `json:"transactionId" validate:"omitempty,min=1"`
}

// Empty reports whether no field is set.
func (in UpdateInput) Empty() bool {
	return in.OrderNo == nil && in.EsimTranNo == nil && in.ICCID == nil && in.TransactionID == nil
}

// Service owns the sims table. Every query is scoped to the calling user.
type Service struct {
	db        *gorm.DB
	txTimeout time.Duration
}

// NewService constructs a SIM service.
func NewService(conn *gorm.DB, txTimeout time.Duration) *Service {
	if txTimeout <= 0 {
		txTimeout = config.DefaultTransactionTimeout
	}
	return &Service{db: conn, txTimeout: txTimeout}
}

// Create stores a SIM record for userID after checking that none of its
// unique identifiers are taken.
func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (*models.SIM, error) {
	in.OrderNo = strings.TrimSpace(in.OrderNo)
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.EsimTranNo = trimOptional(in.EsimTranNo)
	in.ICCID = trimOptional(in.ICCID)
	if errValidate := apperr.Check(in); errValidate != nil {
		return nil, errValidate
	}

	sim := &models.SIM{
		UserID:        userID,
		OrderNo:       in.OrderNo,
		EsimTranNo:    in.EsimTranNo,
		ICCID:         in.ICCID,
		TransactionID: in.TransactionID,
	}
	errTx := db.WithTimeout(ctx, s.db, s.txTimeout, func(tx *gorm.DB) error {
		var owners int64
		if errCount := tx.Model(&models.User{}).Where("id = ?", userID).Count(&owners).Error; errCount != nil {
			return errCount
		}
		if owners == 0 {
			return errUnknownOwner
		}
		if errConflict := checkConflicts(tx, 0, identifiers{orderNo: &sim.OrderNo, esimTranNo: sim.EsimTranNo, iccid: sim.ICCID}); errConflict != nil {
			return errConflict
		}
		if errCreate := tx.Create(sim).Error; errCreate != nil {
			return translateWriteError(errCreate)
		}
		return nil
	})
	if errTx != nil {
		return nil, classify(errTx, "Failed to create SIM details")
	}

	log.WithFields(log.Fields{"user_id": userID, "sim_id": sim.ID}).Info("sim created")
	return sim, nil
}

// List returns the records owned by userID, newest first.
func (s *Service) List(ctx context.Context, userID uint64) ([]models.SIM, error) {
	var rows []models.SIM
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, apperr.Unexpected("Failed to fetch SIM details", errFind)
	}
	return rows, nil
}

// Get returns one record owned by userID. A record owned by someone else is
// reported exactly like a missing one.
func (s *Service) Get(ctx context.Context, userID, simID uint64) (*models.SIM, error) {
	sim, errFind := findOwned(s.db.WithContext(ctx), userID, simID)
	if errFind != nil {
		return nil, classify(errFind, "Failed to fetch SIM details")
	}
	return sim, nil
}

// Update applies the set fields of in to a record owned by userID.
func (s *Service) Update(ctx context.Context, userID, simID uint64, in UpdateInput) (*models.SIM, error) {
	in.OrderNo = trimPresent(in.OrderNo)
	in.EsimTranNo = trimPresent(in.EsimTranNo)
	in.ICCID = trimPresent(in.ICCID)
	in.TransactionID = trimPresent(in.TransactionID)
	if in.Empty() {
		return nil, ErrEmptyUpdate
	}
	if errValidate := apperr.Check(in); errValidate != nil {
		return nil, errValidate
	}

	var sim *models.SIM
	errTx := db.WithTimeout(ctx, s.db, s.txTimeout, func(tx *gorm.DB) error {
		existing, errFind := findOwned(db.ForUpdate(tx), userID, simID)
		if errFind != nil {
			return errFind
		}
		if errConflict := checkConflicts(tx, simID, identifiers{orderNo: in.OrderNo, esimTranNo: in.EsimTranNo, iccid: in.ICCID}); errConflict != nil {
			return errConflict
		}

		updates := map[string]any{}
		if in.OrderNo != nil {
			updates["order_no"] = *in.OrderNo
		}
		if in.EsimTranNo != nil {
			updates["esim_tran_no"] = *in.EsimTranNo
		}
		if in.ICCID != nil {
			updates["iccid"] = *in.ICCID
		}
		if in.TransactionID != nil {
			updates["transaction_id"] = *in.TransactionID
		}
		updates["updated_at"] = time.Now().UTC()
		if errUpdate := tx.Model(existing).Updates(updates).Error; errUpdate != nil {
			return translateWriteError(errUpdate)
		}

		reloaded, errReload := findOwned(tx, userID, simID)
		if errReload != nil {
			return errReload
		}
		sim = reloaded
		return nil
	})
	if errTx != nil {
		return nil, classify(errTx, "Failed to update SIM details")
	}
	return sim, nil
}

// Delete removes a record owned by userID. Deleting twice reports not found.
func (s *Service) Delete(ctx context.Context, userID, simID uint64) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", simID, userID).Delete(&models.SIM{})
	if res.Error != nil {
		return apperr.Unexpected("Failed to delete SIM details", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	log.WithFields(log.Fields{"user_id": userID, "sim_id": simID}).Info("sim deleted")
	return nil
}

// findOwned loads simID when userID owns it.
func findOwned(conn *gorm.DB, userID, simID uint64) (*models.SIM, error) {
	var sim models.SIM
	res := conn.Where("id = ? AND user_id = ?", simID, userID).Limit(1).Find(&sim)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &sim, nil
}

// classify keeps service errors and wraps store failures.
func classify(err error, message string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, errUnknownOwner) {
		return apperr.Wrap(apperr.KindAuth, "Unauthorized: User not found", err)
	}
	return apperr.Unexpected(message, err)
}

// trimOptional trims v and maps blank values to nil.
func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// trimPresent trims v but keeps blank values so validation can reject them.
func trimPresent(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}
