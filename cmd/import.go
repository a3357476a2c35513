package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pvictorino/zapcampaign/internal/config"
	"github.com/pvictorino/zapcampaign/internal/db"
	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/repository"
	"github.com/pvictorino/zapcampaign/internal/segment"
	"github.com/pvictorino/zapcampaign/internal/util"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import customers from CSV and re-segment the customer base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()

		customers := repository.NewCustomersRepository(sqlDB)
		ctx := context.Background()

		imported, skipped, err := importCSV(ctx, f, customers)
		if err != nil {
			return err
		}
		log.Printf(">> Imported %d customers (%d rows skipped)", imported, skipped)

		moved, err := segment.NewReevaluator(sqlDB, customers).Reevaluate(ctx)
		if err != nil {
			return fmt.Errorf("re-segment: %w", err)
		}
		log.Printf(">> Re-segmentation done, %d customers moved", moved)

		return nil
	},
}

// importCSV upserts customers from a header-driven CSV. Columns name and
// phone are required; email, location, average_ticket, order_frequency and
// preferred_items are optional. Bad rows are skipped, not fatal.
func importCSV(ctx context.Context, f io.Reader, customers repository.CustomersRepository) (int, int, error) {
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["name"]; !ok {
		return 0, 0, fmt.Errorf("csv missing required column: name")
	}
	if _, ok := col["phone"]; !ok {
		return 0, 0, fmt.Errorf("csv missing required column: phone")
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var imported, skipped int
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("line %d: bad csv row: %v", line, err)
			skipped++
			continue
		}

		c := model.Customer{
			Name:           field(rec, "name"),
			Phone:          util.NormalizePhone(field(rec, "phone")),
			Email:          field(rec, "email"),
			Location:       field(rec, "location"),
			PreferredItems: field(rec, "preferred_items"),
		}
		if c.Name == "" || c.Phone == "" {
			log.Printf("line %d: missing name or phone, skipped", line)
			skipped++
			continue
		}
		if v := field(rec, "average_ticket"); v != "" {
			if c.AverageTicket, err = strconv.ParseFloat(v, 64); err != nil {
				log.Printf("line %d: bad average_ticket %q, skipped", line, v)
				skipped++
				continue
			}
		}
		if v := field(rec, "order_frequency"); v != "" {
			if c.OrderFrequency, err = strconv.Atoi(v); err != nil {
				log.Printf("line %d: bad order_frequency %q, skipped", line, v)
				skipped++
				continue
			}
		}
		c.Segment = segment.Assign(c)

		if err := customers.Upsert(ctx, nil, c); err != nil {
			return imported, skipped, fmt.Errorf("line %d: upsert %q: %w", line, c.Phone, err)
		}
		imported++
	}
	return imported, skipped, nil
}
