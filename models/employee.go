package models

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/utils"
	"gorm.io/gorm"
)

// Employee carries the identity-store columns alongside the profile fields
// so one row serves both authentication and directory listing. The stamp
// and normalized columns exist for the identity layer; they are all on the
// audit denylist.
type Employee struct {
	Id                   string     `gorm:"primary_key;size:64" json:"id"`
	UserName             string     `gorm:"size:256" json:"user_name"`
	NormalizedUserName   string     `gorm:"size:256;index" json:"-"`
	Email                string     `gorm:"size:256;uniqueIndex" json:"email"`
	NormalizedEmail      string     `gorm:"size:256;index" json:"-"`
	EmailConfirmed       bool       `json:"-"`
	PasswordHash         string     `gorm:"size:256" json:"-"`
	SecurityStamp        string     `gorm:"size:64" json:"-"`
	ConcurrencyStamp     string     `gorm:"size:64" json:"-"`
	PhoneNumber          *string    `gorm:"size:32" json:"phone_number"`
	PhoneNumberConfirmed bool       `json:"-"`
	TwoFactorEnabled     bool       `json:"-"`
	LockoutEnd           *time.Time `json:"-"`
	LockoutEnabled       bool       `json:"-"`
	AccessFailedCount    int        `json:"-"`
	Name                 string     `gorm:"size:128" json:"name"`
	Surname              string     `gorm:"size:128" json:"surname"`
	Department           *string    `gorm:"size:128" json:"department"`
	Role                 string     `gorm:"size:32" json:"role"`
}

const (
	RoleAdmin    = "Admin"
	RoleEmployee = "Employee"
)

var (
	ErrEmailTaken         = utils.NewConflictError("Bu e-posta adresi zaten kullanılıyor.")
	ErrInvalidCredentials = utils.NewUnauthorizedError("Geçersiz e-posta veya şifre.")
	ErrEmployeeNotFound   = utils.NewNotFoundError("Kullanıcı bulunamadı.")
)

// RegisterInput is the payload for creating an employee.
type RegisterInput struct {
	Name        string  `json:"name" binding:"required"`
	Surname     string  `json:"surname" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=6"`
	PhoneNumber *string `json:"phone_number"`
	Department  *string `json:"department"`
	Role        string  `json:"role"`
}

// UpdateEmployeeInput carries the mutable account fields. Nil means leave
// unchanged.
type UpdateEmployeeInput struct {
	Name        *string `json:"name"`
	Surname     *string `json:"surname"`
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	PhoneNumber *string `json:"phone_number"`
	Department  *string `json:"department"`
	Role        *string `json:"role"`
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// RegisterEmployee creates an employee with a freshly hashed credential.
// The email uniqueness check races with concurrent registrations, so the
// unique index is the real guard and a duplicate-key insert maps to the
// same conflict error.
func RegisterEmployee(ctx context.Context, db *gorm.DB, input RegisterInput) (*Employee, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&Employee{}).
		Where("normalized_email = ?", utils.NormalizeLookup(input.Email)).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	phone := input.PhoneNumber
	if phone != nil && *phone != "" {
		normalized, err := utils.NormalizePhoneNumber(*phone, "TR")
		if err != nil {
			return nil, utils.NewValidationError("Geçersiz telefon numarası.")
		}
		phone = &normalized
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = RoleEmployee
	}

	employee := &Employee{
		Id:                 uuid.New().String(),
		UserName:           input.Email,
		NormalizedUserName: utils.NormalizeLookup(input.Email),
		Email:              input.Email,
		NormalizedEmail:    utils.NormalizeLookup(input.Email),
		PasswordHash:       hash,
		SecurityStamp:      uuid.New().String(),
		ConcurrencyStamp:   uuid.New().String(),
		PhoneNumber:        phone,
		Name:               input.Name,
		Surname:            input.Surname,
		Department:         input.Department,
		Role:               role,
	}
	if err := db.WithContext(ctx).Create(employee).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return employee, nil
}

// Login verifies the credential and issues a session token. The token is
// registered in Redis both by value (for validation) and in the per-user
// set (for bulk revocation on account changes).
func Login(ctx context.Context, db *gorm.DB, email, password string) (string, *Employee, error) {
	var employee Employee
	err := db.WithContext(ctx).
		Where("normalized_email = ?", utils.NormalizeLookup(email)).
		First(&employee).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := utils.ComparePassword(employee.PasswordHash, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := utils.JwtGenerate(employee.Id, employee.Name, employee.Surname, employee.Email, employee.Role)
	if err != nil {
		return "", nil, err
	}

	lifespan := utils.TokenLifespan()
	if err := config.SetRedisValue("Token:"+token, employee.Id, lifespan); err != nil {
		config.LogError(config.GetLogger(), "employee.go", "Login", "register token", employee.Id, err)
	}
	if err := config.AddRedisSet("Tokens:"+employee.Id, token); err != nil {
		config.LogError(config.GetLogger(), "employee.go", "Login", "register token set", employee.Id, err)
	}

	return token, &employee, nil
}

// Logout revokes the presented token.
func Logout(ctx context.Context, userId, token string) error {
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return err
	}
	return config.RemoveRedisSetMember("Tokens:"+userId, token)
}

// RevokeAllSessions drops every live token of an employee. Used when the
// account is deleted or its credential changes.
func RevokeAllSessions(userId string) error {
	tokens, err := config.GetRedisSetMembers("Tokens:" + userId)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, "Token:"+t)
	}
	keys = append(keys, "Tokens:"+userId)
	return config.RemoveRedisKey(keys...)
}

func ListEmployees(ctx context.Context, db *gorm.DB) ([]Employee, error) {
	var employees []Employee
	err := db.WithContext(ctx).Order("name ASC, surname ASC").Find(&employees).Error
	return employees, err
}

func GetEmployee(ctx context.Context, db *gorm.DB, id string) (*Employee, error) {
	var employee Employee
	err := db.WithContext(ctx).Where("id = ?", id).First(&employee).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &employee, nil
}

// ResolveEmployeeIdByEmail is the best-effort actor lookup used when a
// request carries no authenticated identity (the login action). Empty id
// means the email matched nobody.
func ResolveEmployeeIdByEmail(ctx context.Context, db *gorm.DB, email string) (string, error) {
	var employee Employee
	err := db.WithContext(ctx).Select("id").
		Where("normalized_email = ?", utils.NormalizeLookup(email)).
		First(&employee).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return employee.Id, nil
}

// UpdateEmployee applies the provided profile fields and saves the full
// row, which routes the change through the audit callbacks.
func UpdateEmployee(ctx context.Context, db *gorm.DB, id string, input UpdateEmployeeInput) (*Employee, error) {
	employee, err := GetEmployee(ctx, db, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		employee.Name = *input.Name
	}
	if input.Surname != nil {
		employee.Surname = *input.Surname
	}
	if input.Department != nil {
		employee.Department = input.Department
	}
	if input.Role != nil {
		employee.Role = *input.Role
	}
	if input.PhoneNumber != nil && *input.PhoneNumber != "" {
		normalized, err := utils.NormalizePhoneNumber(*input.PhoneNumber, "TR")
		if err != nil {
			return nil, utils.NewValidationError("Geçersiz telefon numarası.")
		}
		employee.PhoneNumber = &normalized
	}

	if input.Email != nil && *input.Email != "" && utils.NormalizeLookup(*input.Email) != employee.NormalizedEmail {
		var count int64
		if err := db.WithContext(ctx).Model(&Employee{}).
			Where("normalized_email = ? AND id <> ?", utils.NormalizeLookup(*input.Email), employee.Id).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrEmailTaken
		}
		employee.Email = *input.Email
		employee.UserName = *input.Email
		employee.NormalizedEmail = utils.NormalizeLookup(*input.Email)
		employee.NormalizedUserName = utils.NormalizeLookup(*input.Email)
	}

	passwordReset := input.Password != nil && *input.Password != ""
	if passwordReset {
		hash, err := utils.HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		employee.PasswordHash = hash
		employee.SecurityStamp = uuid.New().String()
	}
	employee.ConcurrencyStamp = uuid.New().String()

	if err := db.WithContext(ctx).Save(employee).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if passwordReset {
		if err := RevokeAllSessions(employee.Id); err != nil {
			config.LogError(config.GetLogger(), "employee.go", "UpdateEmployee", "revoke sessions", employee.Id, err)
		}
	}
	return employee, nil
}

// DeleteEmployee removes the account and revokes its sessions.
func DeleteEmployee(ctx context.Context, db *gorm.DB, id string) error {
	employee, err := GetEmployee(ctx, db, id)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Delete(employee).Error; err != nil {
		return err
	}
	if err := RevokeAllSessions(id); err != nil {
		config.LogError(config.GetLogger(), "employee.go", "DeleteEmployee", "revoke sessions", id, err)
	}
	return nil
}

// ChangePassword verifies the current credential before replacing it, then
// revokes every other session.
func ChangePassword(ctx context.Context, db *gorm.DB, id, currentPassword, newPassword string) error {
	employee, err := GetEmployee(ctx, db, id)
	if err != nil {
		return err
	}
	if err := utils.ComparePassword(employee.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	employee.PasswordHash = hash
	employee.SecurityStamp = uuid.New().String()
	employee.ConcurrencyStamp = uuid.New().String()

	if err := db.WithContext(ctx).Save(employee).Error; err != nil {
		return err
	}
	if err := RevokeAllSessions(id); err != nil {
		config.LogError(config.GetLogger(), "employee.go", "ChangePassword", "revoke sessions", id, err)
	}
	return nil
}
