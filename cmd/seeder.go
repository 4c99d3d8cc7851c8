package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := sqlx.Connect("pgx", cfg.Database.Source)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		ctx := context.Background()
		if clearData {
			if err := clearSeedData(ctx, db); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		maxAmount := cfg.Deduction.DefaultMaxAmount
		if maxAmount == "" {
			maxAmount = "5000.00"
		}
		percentage := cfg.Deduction.DefaultPercentage
		if percentage == "" {
			percentage = "70"
		}
		currency := cfg.Deduction.Currency
		if currency == "" {
			currency = "USD"
		}

		if err := seedDefaultThreshold(ctx, db, maxAmount, percentage, currency); err != nil {
			log.Fatalf("failed to seed deduction threshold: %v", err)
		}
		if err := seedSyncConfiguration(ctx, db, cfg.Sync.MaxRetries, int(cfg.Sync.RetryBaseDelay.Seconds())); err != nil {
			log.Fatalf("failed to seed sync configuration: %v", err)
		}

		managerID, err := seedEmployee(ctx, db, seedEmployeeRow{
			Code: "EMP-0001", Name: "Fadhil Manager", Email: "fadhil@mail.com",
			Department: "Finance", BaseSalary: "9000.00", DeviceUserID: "1",
		})
		if err != nil {
			log.Fatalf("failed to seed manager: %v", err)
		}

		for _, e := range []seedEmployeeRow{
			{Code: "EMP-0002", Name: "Padil Staff", Email: "padil@mail.com", Department: "Finance", BaseSalary: "4500.00", DeviceUserID: "101"},
			{Code: "EMP-0003", Name: "Rina Staff", Email: "rina@mail.com", Department: "Operations", BaseSalary: "4200.00", DeviceUserID: "102"},
		} {
			e.ManagerID = &managerID
			if _, err := seedEmployee(ctx, db, e); err != nil {
				log.Fatalf("failed to seed employee %s: %v", e.Code, err)
			}
		}

		if err := seedDevice(ctx, db); err != nil {
			log.Fatalf("failed to seed attendance device: %v", err)
		}
		if err := seedPayrollPeriod(ctx, db, time.Now().UTC()); err != nil {
			log.Fatalf("failed to seed payroll period: %v", err)
		}

		fmt.Println("Seeding complete")
	},
}

type seedEmployeeRow struct {
	Code         string `db:"employee_code"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	Department   string `db:"department"`
	BaseSalary   string `db:"base_salary"`
	DeviceUserID string `db:"device_user_id"`
	ManagerID    *int64 `db:"manager_id"`
}

func clearSeedData(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `TRUNCATE
		attendance_logs, attendance_devices,
		payroll_sync_statuses, expense_sync_statuses, sync_logs, sync_configurations,
		payroll_expense_integrations, payroll_periods,
		expense_installments, expense_installment_plans,
		expense_approval_steps, expense_approval_workflows,
		expense_status_history, expenses,
		employee_deduction_thresholds, expense_deduction_thresholds,
		employees
		RESTART IDENTITY CASCADE`)
	return err
}

func seedDefaultThreshold(ctx context.Context, db *sqlx.DB, maxAmount, percentage, currency string) error {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM expense_deduction_thresholds"); err != nil {
		return err
	}
	if count > 0 {
		fmt.Println("deduction threshold already exists")
		return nil
	}

	_, err := db.ExecContext(ctx,
		"INSERT INTO expense_deduction_thresholds (max_amount, percentage, currency) VALUES ($1, $2, $3)",
		maxAmount, percentage, currency)
	if err == nil {
		fmt.Printf("Seeded deduction threshold: %s %s at %s%%\n", maxAmount, currency, percentage)
	}
	return err
}

func seedSyncConfiguration(ctx context.Context, db *sqlx.DB, maxRetries, baseDelaySeconds int) error {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sync_configurations"); err != nil {
		return err
	}
	if count > 0 {
		fmt.Println("sync configuration already exists")
		return nil
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelaySeconds <= 0 {
		baseDelaySeconds = 300
	}

	_, err := db.ExecContext(ctx, `INSERT INTO sync_configurations
		(payroll_sync_enabled, expense_sync_enabled, scheduled_sync_enabled, max_retries, retry_base_delay_seconds)
		VALUES (true, true, true, $1, $2)`, maxRetries, baseDelaySeconds)
	if err == nil {
		fmt.Println("Seeded sync configuration")
	}
	return err
}

func seedEmployee(ctx context.Context, db *sqlx.DB, e seedEmployeeRow) (int64, error) {
	var id int64
	err := db.GetContext(ctx, &id, "SELECT id FROM employees WHERE employee_code = $1", e.Code)
	if err == nil {
		fmt.Println("employee already exists:", e.Code)
		return id, nil
	}

	rows, err := db.NamedQueryContext(ctx, `INSERT INTO employees
		(employee_code, name, email, department, base_salary, device_user_id, manager_id, is_active)
		VALUES (:employee_code, :name, :email, :department, :base_salary, :device_user_id, :manager_id, true)
		RETURNING id`, e)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
	}
	fmt.Println("Seeded employee:", e.Code, e.Name)
	return id, rows.Err()
}

func seedDevice(ctx context.Context, db *sqlx.DB) error {
	res, err := db.ExecContext(ctx, `INSERT INTO attendance_devices (name, serial_number, ip_address, port, is_active)
		VALUES ('Front Door', 'ZK-0001', '192.168.1.201', 4370, true)
		ON CONFLICT (serial_number) DO NOTHING`)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		fmt.Println("Seeded attendance device: ZK-0001")
	}
	return nil
}

func seedPayrollPeriod(ctx context.Context, db *sqlx.DB, now time.Time) error {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	name := start.Format("January 2006")

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM payroll_periods WHERE start_date = $1", start); err != nil {
		return err
	}
	if count > 0 {
		fmt.Println("payroll period already exists:", name)
		return nil
	}

	_, err := db.ExecContext(ctx,
		"INSERT INTO payroll_periods (name, start_date, end_date, status) VALUES ($1, $2, $3, 'OPEN')",
		name, start, end)
	if err == nil {
		fmt.Println("Seeded payroll period:", name)
	}
	return err
}
