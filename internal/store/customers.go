package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pontifexx/supplier-portal/internal/models"
)

var ErrNotFound = errors.New("not found")

func (db *DB) CreateCustomer(name, domain, apiKey string) (int64, error) {
	res, err := db.Exec(`INSERT INTO customers (name, domain, api_key) VALUES (?, ?, ?)`,
		name, domain, apiKey)
	if err != nil {
		return 0, fmt.Errorf("failed to create customer: %w", err)
	}
	return res.LastInsertId()
}

func (db *DB) Customer(id int64) (*models.Customer, error) {
	var c models.Customer
	err := db.Get(&c, `SELECT id, name, domain, api_key FROM customers WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) ListCustomers() ([]models.Customer, error) {
	var customers []models.Customer
	err := db.Select(&customers, `SELECT id, name, domain, api_key FROM customers ORDER BY name`)
	return customers, err
}

func (db *DB) UpdateCustomerKey(id int64, apiKey string) error {
	res, err := db.Exec(`UPDATE customers SET api_key = ? WHERE id = ?`, apiKey, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCustomer removes a customer; status mappings, cached jobs and the
// contact index cascade with it.
func (db *DB) DeleteCustomer(id int64) error {
	res, err := db.Exec(`DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
