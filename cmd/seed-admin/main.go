package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/attendance_backend/config"
	"github.com/mmdatafocus/attendance_backend/models"
	"github.com/mmdatafocus/attendance_backend/utils"
)

func main() {
	email := flag.String("email", "admin@sirket.com", "Admin email to seed")
	password := flag.String("password", "", "Admin password (required)")
	name := flag.String("name", "Sistem", "Admin first name")
	surname := flag.String("surname", "Yöneticisi", "Admin surname")
	flag.Parse()

	if strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "-password is required")
		os.Exit(1)
	}

	ctx := context.Background()
	// Explicit DB connect (config no longer connects DB in init()).
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	models.MigrateTable()

	// Seeding is itself an audited mutation; attribute it.
	ctx = utils.SetUserNameInContext(ctx, "SeedAdmin")

	utils.ErrorPanic(db.Use(models.NewAuditTrailPlugin()))

	admin, err := models.RegisterEmployee(ctx, db, models.RegisterInput{
		Name:     *name,
		Surname:  *surname,
		Email:    *email,
		Password: *password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded admin %s (%s)\n", admin.Email, admin.Id)
}
