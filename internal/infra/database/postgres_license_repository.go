package database

import (
	"context"
	"database/sql"
	"fmt"

	"license_notifier/internal/domain/license"
)

type PostgresLicenseRepository struct {
	db *sql.DB
}

func NewPostgresLicenseRepository(db *sql.DB) *PostgresLicenseRepository {
	return &PostgresLicenseRepository{db: db}
}

func (r *PostgresLicenseRepository) ListActive(ctx context.Context) ([]*license.License, error) {
	query := `SELECT l.id, l.tool_name, COALESCE(v.name, ''), l.expiration_date, l.quantity,
                     l.client_id, c.name, c.email, v.email
               FROM licenses l
               LEFT JOIN vendors v ON v.id = l.vendor_id
               LEFT JOIN clients c ON c.id = l.client_id
               WHERE l.is_deleted = FALSE
               ORDER BY l.expiration_date ASC, l.id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]*license.License, 0)
	for rows.Next() {
		l := &license.License{}
		if err := rows.Scan(
			&l.ID, &l.ToolName, &l.VendorName, &l.ExpirationDate, &l.Quantity,
			&l.ClientID, &l.ClientName, &l.ClientEmail, &l.VendorEmail,
		); err != nil {
			return nil, fmt.Errorf("error scanning active license: %w", err)
		}
		licenses = append(licenses, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active licenses: %w", err)
	}
	return licenses, nil
}
