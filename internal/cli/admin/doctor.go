package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soapify-health/soapify/internal/config"
	"github.com/soapify-health/soapify/internal/database"
	"github.com/soapify-health/soapify/internal/repository"
	"github.com/soapify-health/soapify/internal/service"
	"github.com/spf13/cobra"
)

func DoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Manage doctor accounts",
		Long:  "Register and list doctor accounts",
	}

	cmd.AddCommand(DoctorAddCmd())
	cmd.AddCommand(DoctorListCmd())

	return cmd
}

func DoctorAddCmd() *cobra.Command {
	var fullName string

	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Register a new doctor",
		Long:  "Register a doctor account and print the API token. The token is shown once and cannot be recovered.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runDoctorAdd(args[0], fullName, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&fullName, "name", "n", "", "Doctor's full name")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runDoctorAdd(email, fullName, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	doctorRepo := repository.NewDoctorRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(doctorRepo, uuidGen)

	doctor, token, err := authSvc.RegisterDoctor(ctx, email, fullName)
	if err != nil {
		return fmt.Errorf("failed to register doctor: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         doctor.ID,
			"email":      doctor.Email,
			"full_name":  doctor.FullName,
			"api_token":  token,
			"created_at": doctor.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Doctor registered: %s (%s)\n", doctor.FullName, doctor.ID)
		fmt.Printf("API token (save it now, it will not be shown again):\n%s\n", token)
	}

	return nil
}

func DoctorListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered doctors",
		Long:  "List all registered doctor accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runDoctorList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runDoctorList(outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	doctorRepo := repository.NewDoctorRepository(pool)

	doctors, err := doctorRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list doctors: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(doctors))
		for i, d := range doctors {
			data[i] = map[string]interface{}{
				"id":         d.ID,
				"email":      d.Email,
				"full_name":  d.FullName,
				"created_at": d.CreatedAt,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(doctors) == 0 {
		fmt.Println("No doctors registered")
		return nil
	}

	for _, d := range doctors {
		fmt.Printf("%s  %s  %s\n", d.ID, d.Email, d.FullName)
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	return pool, nil
}
