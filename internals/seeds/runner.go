package seeds

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"olimpiada_backend/internals/seeds/olympiad/areas"
	"olimpiada_backend/internals/seeds/olympiad/convocatorias"
	"olimpiada_backend/internals/seeds/users/accounts"
)

// RunAllSeeds is idempotent; rows that already exist are left alone.
func RunAllSeeds(db *gorm.DB, log *zap.Logger, accountPassword string) error {
	log = log.Named("seeds")

	//* Accounts
	if err := accounts.SeedAccounts(db, log, accountPassword); err != nil {
		return err
	}

	//* Olympiad catalogue
	if err := areas.SeedAreas(db, log); err != nil {
		return err
	}
	if err := convocatorias.SeedConvocatorias(db, log); err != nil {
		return err
	}
	return nil
}
