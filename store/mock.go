package store

import (
	"context"
	"strings"
)

// Mock serves a canned commerce schema and keyword-routed sample rows.
// It stands in for Postgres when the database is not configured so the
// agent pipeline still runs end to end.
type Mock struct{}

// NewMock returns the mock backend.
func NewMock() *Mock {
	return &Mock{}
}

// Schema returns the sample commerce schema.
func (m *Mock) Schema(ctx context.Context) (*Schema, error) {
	return MockSchema(), nil
}

// Execute routes on table names mentioned in the query and returns sample rows.
func (m *Mock) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "customers") && !strings.Contains(q, "orders"):
		return []map[string]any{
			{"id": 1, "name": "John Doe", "email": "john@example.com", "country": "USA", "created_at": "2023-01-15"},
			{"id": 2, "name": "Jane Smith", "email": "jane@example.com", "country": "Canada", "created_at": "2023-02-20"},
			{"id": 3, "name": "Robert Brown", "email": "robert@example.com", "country": "UK", "created_at": "2023-03-10"},
		}, nil
	case strings.Contains(q, "orders"):
		return []map[string]any{
			{"id": 101, "customer_id": 1, "order_date": "2023-04-05", "amount": 245.50, "status": "Completed"},
			{"id": 102, "customer_id": 1, "order_date": "2023-05-10", "amount": 125.75, "status": "Completed"},
			{"id": 103, "customer_id": 2, "order_date": "2023-04-15", "amount": 89.99, "status": "Completed"},
			{"id": 104, "customer_id": 3, "order_date": "2023-05-20", "amount": 175.25, "status": "Processing"},
		}, nil
	case strings.Contains(q, "products"):
		return []map[string]any{
			{"id": 201, "name": "Laptop", "category": "Electronics", "price": 1299.99, "inventory": 45},
			{"id": 202, "name": "Smartphone", "category": "Electronics", "price": 899.99, "inventory": 60},
			{"id": 203, "name": "Headphones", "category": "Accessories", "price": 149.99, "inventory": 100},
			{"id": 204, "name": "Monitor", "category": "Electronics", "price": 349.99, "inventory": 30},
		}, nil
	default:
		return nil, nil
	}
}

// Ping always succeeds; there is nothing to reach.
func (m *Mock) Ping(ctx context.Context) error {
	return nil
}

// MockSchema is the sample commerce schema shared by the mock backend and the
// demo migrations.
func MockSchema() *Schema {
	return &Schema{
		Tables: []Table{
			{
				Name: "customers",
				Columns: []Column{
					{Name: "id", Type: "integer", PrimaryKey: true},
					{Name: "name", Type: "varchar"},
					{Name: "email", Type: "varchar"},
					{Name: "country", Type: "varchar", Nullable: true},
					{Name: "created_at", Type: "timestamp", Nullable: true},
				},
			},
			{
				Name: "orders",
				Columns: []Column{
					{Name: "id", Type: "integer", PrimaryKey: true},
					{Name: "customer_id", Type: "integer", ForeignKey: true, ReferencesTable: "customers", ReferencesColumn: "id"},
					{Name: "order_date", Type: "date"},
					{Name: "amount", Type: "numeric"},
					{Name: "status", Type: "varchar"},
				},
			},
			{
				Name: "products",
				Columns: []Column{
					{Name: "id", Type: "integer", PrimaryKey: true},
					{Name: "name", Type: "varchar"},
					{Name: "category", Type: "varchar", Nullable: true},
					{Name: "price", Type: "numeric"},
					{Name: "inventory", Type: "integer"},
				},
			},
			{
				Name: "order_items",
				Columns: []Column{
					{Name: "id", Type: "integer", PrimaryKey: true},
					{Name: "order_id", Type: "integer", ForeignKey: true, ReferencesTable: "orders", ReferencesColumn: "id"},
					{Name: "product_id", Type: "integer", ForeignKey: true, ReferencesTable: "products", ReferencesColumn: "id"},
					{Name: "quantity", Type: "integer"},
					{Name: "price", Type: "numeric"},
				},
			},
		},
		Relationships: []Relationship{
			{From: "orders.customer_id", To: "customers.id"},
			{From: "order_items.order_id", To: "orders.id"},
			{From: "order_items.product_id", To: "products.id"},
		},
	}
}
