package accounts

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"olimpiada_backend/internals/constants"
	"olimpiada_backend/internals/features/users/accounts/model"
)

//go:embed data_accounts.json
var dataAccounts []byte

type StudentSeed struct {
	FullName   string  `json:"student_full_name"`
	SchoolName *string `json:"student_school_name"`
	Grade      *string `json:"student_grade"`
}

type AccountSeed struct {
	Email    string        `json:"account_email"`
	FullName string        `json:"account_full_name"`
	Role     string        `json:"account_role"`
	Students []StudentSeed `json:"students"`
}

// SeedAccounts creates the demo accounts, all sharing password. Existing
// emails are skipped.
func SeedAccounts(db *gorm.DB, log *zap.Logger, password string) error {
	return SeedAccountsFromJSON(db, log, dataAccounts, password)
}

func SeedAccountsFromJSON(db *gorm.DB, log *zap.Logger, data []byte, password string) error {
	if strings.TrimSpace(password) == "" {
		log.Warn("SEED_ACCOUNT_PASSWORD is empty, account seeds skipped")
		return nil
	}
	var seeds []AccountSeed
	if err := sonic.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("decode account seeds: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	for _, s := range seeds {
		email := strings.ToLower(strings.TrimSpace(s.Email))
		if !constants.IsValidRole(s.Role) {
			return fmt.Errorf("account %s: unknown role %q", email, s.Role)
		}

		var existing model.AccountModel
		err := db.Where("account_email = ?", email).First(&existing).Error
		if err == nil {
			log.Info("account already exists, skipped", zap.String("email", email))
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup account %s: %w", email, err)
		}

		if err := db.Transaction(func(tx *gorm.DB) error {
			acc := model.AccountModel{
				AccountEmail:        email,
				AccountFullName:     s.FullName,
				AccountRole:         s.Role,
				AccountPasswordHash: string(hash),
			}
			if err := tx.Create(&acc).Error; err != nil {
				return err
			}
			for _, st := range s.Students {
				row := model.StudentModel{
					StudentAccountID:  &acc.AccountID,
					StudentFullName:   st.FullName,
					StudentSchoolName: st.SchoolName,
					StudentGrade:      st.Grade,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return fmt.Errorf("seed account %s: %w", email, err)
		}
		log.Info("account seeded", zap.String("email", email), zap.String("role", s.Role), zap.Int("students", len(s.Students)))
	}
	return nil
}
