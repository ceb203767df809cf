/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/friendsincode/shuttle_hub/internal/auth"
	"github.com/friendsincode/shuttle_hub/internal/db"
	"github.com/friendsincode/shuttle_hub/internal/models"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts from the command line",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account",
	RunE:  runAdminCreate,
}

var adminResetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Reset an admin account password",
	RunE:  runAdminResetPassword,
}

var (
	adminEmail    string
	adminPassword string
	adminName     string
	adminRole     string
)

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)
	adminCmd.AddCommand(adminResetPasswordCmd)

	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "Account email (required)")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "Account password (required)")
	adminCreateCmd.Flags().StringVar(&adminName, "name", "", "Full name")
	adminCreateCmd.Flags().StringVar(&adminRole, "role", "admin", "Role: super_admin, admin, or viewer")
	adminCreateCmd.MarkFlagRequired("email")
	adminCreateCmd.MarkFlagRequired("password")

	adminResetPasswordCmd.Flags().StringVar(&adminEmail, "email", "", "Account email (required)")
	adminResetPasswordCmd.Flags().StringVar(&adminPassword, "password", "", "New password (required)")
	adminResetPasswordCmd.MarkFlagRequired("email")
	adminResetPasswordCmd.MarkFlagRequired("password")
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	role := models.RoleName(strings.ToLower(adminRole))
	switch role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleViewer:
	default:
		return fmt.Errorf("unknown role %q", adminRole)
	}
	if len(adminPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := models.AdminUser{
		ID:           uuid.NewString(),
		Email:        adminEmail,
		PasswordHash: hash,
		FullName:     adminName,
		Role:         role,
		IsActive:     true,
	}
	if err := database.Create(&user).Error; err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	fmt.Printf("Created %s account %s\n", role, adminEmail)
	return nil
}

func runAdminResetPassword(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if len(adminPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	result := database.Model(&models.AdminUser{}).
		Where("email = ?", adminEmail).
		Update("password_hash", hash)
	if result.Error != nil {
		return fmt.Errorf("reset password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no account with email %s", adminEmail)
	}

	fmt.Printf("Password reset for %s\n", adminEmail)
	return nil
}
