package models

import (
	"log"

	"github.com/mmdatafocus/attendance_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Employee{},
		&AttendanceLog{},
		&AuditLog{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
