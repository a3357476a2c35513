package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pvictorino/zapcampaign/internal/config"
	"github.com/pvictorino/zapcampaign/internal/db"
	"github.com/pvictorino/zapcampaign/internal/model"
	"github.com/pvictorino/zapcampaign/internal/segment"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo customers and a demo campaign",
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

		log.Println(">> Seeding demo customers...")
		if err := seedCustomers(sqlDB); err != nil {
			return err
		}
		if err := seedCampaign(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

// seedCustomers inserts deterministic demo customers covering every
// segment (idempotent, keyed on the unique phone).
func seedCustomers(dbx *sqlx.DB) error {
	customers := []model.Customer{
		{Name: "Ana Souza", Phone: "+5511988880001", Email: "ana@example.com", AverageTicket: 150, OrderFrequency: 3, PreferredItems: "sushi"},
		{Name: "Bruno Lima", Phone: "+5511988880002", Email: "bruno@example.com", AverageTicket: 45, OrderFrequency: 12, PreferredItems: "temaki"},
		{Name: "Carla Dias", Phone: "+5511988880003", Email: "carla@example.com", Location: "Pinheiros", AverageTicket: 60, OrderFrequency: 4, PreferredItems: "yakisoba"},
		{Name: "Diego Alves", Phone: "+5511988880004", Email: "diego@example.com", AverageTicket: 35, OrderFrequency: 2},
		{Name: "Elisa Prado", Phone: "+5511988880005", Email: "elisa@example.com", Location: "Moema", AverageTicket: 220, OrderFrequency: 10, PreferredItems: "sashimi"},
	}

	const q = `
INSERT INTO customers
    (name, phone, email, location, average_ticket, order_frequency, preferred_items, segment, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name            = VALUES(name),
    email           = VALUES(email),
    location        = VALUES(location),
    average_ticket  = VALUES(average_ticket),
    order_frequency = VALUES(order_frequency),
    preferred_items = VALUES(preferred_items),
    segment         = VALUES(segment),
    updated_at      = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, c := range customers {
		c.Segment = segment.Assign(c)
		if _, err := tx.Exec(q,
			c.Name, c.Phone, c.Email, c.Location,
			c.AverageTicket, c.OrderFrequency, c.PreferredItems,
			c.Segment.String(), now, now,
		); err != nil {
			return fmt.Errorf("insert customer %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit customers: %w", err)
	}
	return nil
}

// seedCampaign inserts one draft campaign exercising every placeholder.
func seedCampaign(dbx *sqlx.DB) error {
	const name = "Volta às aulas"

	var n int
	if err := dbx.Get(&n, `SELECT COUNT(*) FROM campaigns WHERE name = ?`, name); err != nil {
		return fmt.Errorf("check campaign: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err := dbx.Exec(`
INSERT INTO campaigns
    (name, message_template, image_url, coupon_code, target_segment, status, created_at, updated_at)
VALUES
    (?, ?, '', ?, 'all', 'draft', NOW(), NOW())
`, name,
		"Olá {nome_cliente}! Seu {sabor_preferido} favorito com cupom {cupom_desconto}. Peça em {link_cardapio}",
		"VOLTA15",
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}
