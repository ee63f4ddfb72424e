package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/principal"
)

type supervisorEntry struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=50"`
}

func newSetSupervisorCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-supervisor <file.json>",
		Short: "Create supervisors from a JSON file, then delete the file",
		Long: "Reads a JSON array of {firstName, lastName, email, password} objects and " +
			"creates a Supervisor member for each. Emails that already exist are skipped. " +
			"The file is removed once every entry is stored.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gastronomy.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			entries, err := readSupervisors(args[0])
			if err != nil {
				return err
			}
			return withCore(cmd.Context(), cfg, func(ctx context.Context, c core) error {
				if err := seedSupervisors(ctx, c.Engine, entries, c.Logger); err != nil {
					return err
				}
				if err := os.Remove(args[0]); err != nil {
					return fmt.Errorf("remove %s: %w", args[0], err)
				}
				return nil
			})
		},
	}
}

// readSupervisors parses and validates the whole file before anything is
// written.
func readSupervisors(path string) ([]supervisorEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read supervisors: %w", err)
	}
	var entries []supervisorEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	for i := range entries {
		if err := validate.Struct(&entries[i]); err != nil {
			return nil, fmt.Errorf("supervisor #%d: %w", i+1, err)
		}
	}
	return entries, nil
}

func seedSupervisors(ctx context.Context, engine *gastronomy.Engine, entries []supervisorEntry, logger *zap.Logger) error {
	for _, e := range entries {
		m, err := engine.CreateMember(ctx, gastronomy.NewMemberInput{
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Email:     e.Email,
			Password:  e.Password,
			Role:      principal.RoleSupervisor,
		})
		switch {
		case errors.Is(err, gastronomy.ErrAccountExists):
			logger.Warn("supervisor already exists", zap.String("email", e.Email))
		case err != nil:
			return fmt.Errorf("create supervisor %s: %w", e.Email, err)
		default:
			logger.Info("supervisor created", zap.String("id", m.ID), zap.String("email", m.Email))
		}
	}
	return nil
}
