package migrations

import (
	"database/sql"
	"fmt"
)

// createStatements builds the demo commerce schema the assistant ships with.
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(100) UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		customer_id INTEGER REFERENCES customers(id),
		amount DECIMAL(10,2) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id INTEGER REFERENCES orders(id),
		product_id INTEGER REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_price DECIMAL(10,2) NOT NULL
	)`,
}

var seedStatements = []string{
	`INSERT INTO customers (name, email) VALUES
		('John Doe', 'john@example.com'),
		('Jane Smith', 'jane@example.com'),
		('Bob Wilson', 'bob@example.com')`,
	`INSERT INTO products (name, price, stock) VALUES
		('Laptop', 1200.00, 15),
		('Mouse', 25.50, 120),
		('Keyboard', 75.00, 60)`,
	`INSERT INTO orders (customer_id, amount, status) VALUES
		(1, 1225.50, 'completed'),
		(1, 75.00, 'completed'),
		(2, 1200.00, 'pending')`,
	`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES
		(1, 1, 1, 1200.00),
		(1, 2, 1, 25.50),
		(2, 3, 1, 75.00),
		(3, 1, 1, 1200.00)`,
}

// InitSchema creates the demo tables when they are missing and seeds them on
// first run.
func InitSchema(db *sql.DB) error {
	for _, stmt := range createStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create demo table: %w", err)
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM customers`).Scan(&count); err != nil {
		return fmt.Errorf("check demo data: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range seedStatements {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return tx.Commit()
}

// VerifySchema checks that the tables the assistant queries exist.
func VerifySchema(db *sql.DB) error {
	tables := []string{"customers", "products", "orders", "order_items"}

	for _, table := range tables {
		var exists bool
		query := `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = $1
			)`

		if err := db.QueryRow(query, table).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}

	return nil
}
