package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	orderModel "olimpiada_backend/internals/features/finance/payment_orders/model"
	areaModel "olimpiada_backend/internals/features/olympiad/areas/model"
	convModel "olimpiada_backend/internals/features/olympiad/convocatorias/model"
	accountModel "olimpiada_backend/internals/features/users/accounts/model"
	"olimpiada_backend/internals/helpers/lock"
)

// Models in dependency order.
func Models() []any {
	return []any{
		&accountModel.AccountModel{},
		&accountModel.StudentModel{},
		&areaModel.AreaModel{},
		&convModel.ConvocatoriaModel{},
		&convModel.ConvocatoriaAreaModel{},
		&orderModel.PaymentOrderModel{},
		&orderModel.EnrollmentRequestModel{},
		&orderModel.AreaSelectionModel{},
		&lock.JobLease{},
	}
}

func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		log.Warn("pgcrypto extension not created, gen_random_uuid must already exist", zap.Error(err))
	}
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto migrate %T: %w", m, err)
		}
	}
	log.Info("schema migrated", zap.Int("tables", len(Models())))
	return nil
}
